//go:build !unix

package fsx

// 非 unix 平台没有 EXDEV errno 可判；跨盘失败按普通 rename 错误上抛。
func isEXDEV(err error) bool { return false }

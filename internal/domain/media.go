package domain

import "strings"

// MediaKind 区分图片与视频：两类媒体的损坏判定、可写字段、
// 扩展名修正资格都不同，集中在这里避免散落的扩展名比较。
type MediaKind int

const (
	KindImage MediaKind = iota
	KindVideo
)

func (k MediaKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	default:
		return "image"
	}
}

// CanNormalizeExt 报告该类媒体是否参与“真实格式 vs 扩展名”修正。
// 视频容器不做嗅探改名。
func (k MediaKind) CanNormalizeExt() bool { return k == KindImage }

// CorruptibleByDecode 报告“解码失败”是否可以作为损坏信号。
// 视频不走进程内解码，缺日期也不是损坏（普通可修复场景）。
func (k MediaKind) CorruptibleByDecode() bool { return k == KindImage }

// WriteFields 返回写入时间时应覆盖的 exiftool 字段集合。
//
// 约束（与参考行为一致）：
// - 视频只写容器/轨道层时间，绝不写 DateTimeOriginal 与文件系统时间
//   （前者属于照片 EXIF，后者易因权限失败）
// - 图片写拍摄时间 + 常见兼容字段 + 文件系统时间
func (k MediaKind) WriteFields() []string {
	if k == KindVideo {
		return []string{
			"CreateDate",
			"ModifyDate",
			"MediaCreateDate",
			"MediaModifyDate",
			"TrackCreateDate",
			"TrackModifyDate",
			"EncodedDate",
			"TaggedDate",
			"ContentCreateDate",
			"CreationDate",
		}
	}
	return []string{
		"DateTimeOriginal",
		"CreateDate",
		"ModifyDate",
		"MediaCreateDate",
		"MediaModifyDate",
		"TrackCreateDate",
		"TrackModifyDate",
		"FileCreateDate",
		"FileModifyDate",
	}
}

// MediaFile 描述一次扫描得到的媒体文件（扫描阶段只 stat，不读内容）。
//
// 不变量：AbsPath 必须是 clean + absolute；Ext 为小写含点形式。
// 路径是文件身份：扩展名修正或移动后，消费方必须使用返回的新路径。
type MediaFile struct {
	AbsPath string
	RelPath string
	Base    string // filename without ext
	Ext     string // ".jpg"
	Kind    MediaKind
	Size    int64
	ModUnix int64
}

// 识别的扩展名集合（来源固定，不做配置化）。
var (
	imageExts = map[string]struct{}{
		".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {}, ".heic": {}, ".tiff": {},
	}
	videoExts = map[string]struct{}{
		".mp4": {},
	}
)

// KindForExt 判断扩展名属于哪类媒体；includeVideo=false 时视频不参与扫描。
func KindForExt(ext string, includeVideo bool) (MediaKind, bool) {
	ext = strings.ToLower(ext)
	if _, ok := imageExts[ext]; ok {
		return KindImage, true
	}
	if includeVideo {
		if _, ok := videoExts[ext]; ok {
			return KindVideo, true
		}
	}
	return KindImage, false
}

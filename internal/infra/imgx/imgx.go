package imgx

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	// 注册解码器：输入不止 jpeg/png，webp/tiff/gif/bmp 也要能嗅探与校验。
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	exifdata "github.com/dsoprea/go-exif/v3"
	pngstructure "github.com/dsoprea/go-png-image-structure/v2"
	"github.com/rwcarlsen/goexif/exif"
)

// tagDateTimeOriginal 是拍摄时间的 EXIF 数字标签（36867）。
const tagDateTimeOriginal = 0x9003

// ErrDecode 表示容器本身无法解析：图片的损坏信号（仍需外部工具兜底确认）。
var ErrDecode = errors.New("imgx: 无法解码")

// ErrNoDate 表示容器解析正常，但没有嵌入的拍摄时间：普通可修复场景。
var ErrNoDate = errors.New("imgx: 无拍摄时间")

// DetectFormat 嗅探文件的真实格式（只读头部）。
// 返回标准库注册名："jpeg"、"png"、"webp"、"tiff"、"gif"、"bmp"。
func DetectFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	_, format, err := image.DecodeConfig(f)
	if err != nil {
		return "", fmt.Errorf("%w：%v", ErrDecode, err)
	}
	return format, nil
}

// ExtForFormat 把真实格式映射到期望扩展名；不管理的格式返回空串。
func ExtForFormat(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "png":
		return ".png"
	case "webp":
		return ".webp"
	case "tiff":
		return ".tiff"
	default:
		return ""
	}
}

// NormalizeExtFor 基于真实格式给出应使用的扩展名。
// 返回空串表示无需改名（格式不受管理、扩展名已正确，或 .jpg/.jpeg 等价）。
func NormalizeExtFor(path string) (string, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return "", err
	}

	desired := ExtForFormat(format)
	if desired == "" {
		return "", nil
	}

	current := strings.ToLower(filepath.Ext(path))
	if current == desired {
		return "", nil
	}
	// .jpg 与 .jpeg 等价，不折腾。
	if desired == ".jpg" && (current == ".jpg" || current == ".jpeg") {
		return "", nil
	}
	return desired, nil
}

// Verify 完整解码一遍像素数据，作为只读完整性检查。
// 任何解码错误都视为损坏并返回包含原因的 ErrDecode。
func Verify(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, _, err := image.Decode(f); err != nil {
		return fmt.Errorf("%w：%v", ErrDecode, err)
	}
	return nil
}

// ReadCaptureDate 进程内读取嵌入的拍摄时间（原始字符串，规范化由调用方做）。
//
// 错误语义：
// - ErrDecode：容器解析失败（损坏候选；调用方必须再走外部工具兜底）
// - ErrNoDate：容器正常但没有可用的拍摄时间标签
func ReadCaptureDate(path string) (string, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return "", err
	}

	switch format {
	case "png":
		return readPNGDate(path)
	case "jpeg", "tiff":
		return readEXIFDate(path)
	default:
		// webp/gif/bmp：进程内没有标签读取路径，留给外部工具。
		return "", ErrNoDate
	}
}

// readEXIFDate 读 JPEG/TIFF 的 EXIF DateTimeOriginal。
// 容器头已验证过，EXIF 段缺失/坏掉都按“无日期”处理，不升级为损坏。
func readEXIFDate(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return "", ErrNoDate
	}
	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return "", ErrNoDate
	}
	s, err := tag.StringVal()
	if err != nil || strings.TrimSpace(s) == "" {
		return "", ErrNoDate
	}
	return s, nil
}

// readPNGDate 解析 PNG chunk 结构并取 eXIf 中的拍摄时间。
// 结构解析失败是损坏信号；没有 eXIf chunk 只是无日期。
func readPNGDate(path string) (string, error) {
	intfc, err := pngstructure.NewPngMediaParser().ParseFile(path)
	if err != nil {
		return "", fmt.Errorf("%w：%v", ErrDecode, err)
	}
	cs, ok := intfc.(*pngstructure.ChunkSlice)
	if !ok {
		return "", ErrNoDate
	}

	_, rawExif, err := cs.Exif()
	if err != nil {
		return "", ErrNoDate
	}

	tags, _, err := exifdata.GetFlatExifData(rawExif, nil)
	if err != nil {
		return "", ErrNoDate
	}
	for _, t := range tags {
		if t.TagId != tagDateTimeOriginal {
			continue
		}
		if s, ok := t.Value.(string); ok && strings.TrimSpace(s) != "" {
			return s, nil
		}
		if strings.TrimSpace(t.FormattedFirst) != "" {
			return t.FormattedFirst, nil
		}
	}
	return "", ErrNoDate
}

package service

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

const thumbnailMaxSide = 512

// AttachmentService 负责把上传的 Base64 图片落盘为附件文件。
// 文件名使用随机 UUID，避免并发写入冲突，也不可被猜测。
type AttachmentService struct {
	dir string
}

// NewAttachmentService creates an AttachmentService writing into dir.
func NewAttachmentService(dir string) *AttachmentService {
	return &AttachmentService{dir: dir}
}

// Store 解码 Base64 数据并写入附件目录，返回生成的文件名。
// 解码失败由调用方决定是否容忍；写盘失败视为存储错误。
func (s *AttachmentService) Store(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("解码图片数据失败: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("创建附件目录失败: %w", err)
	}

	filename := uuid.New().String() + ".jpg"
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("保存附件失败: %w", err)
	}

	// 缩略图生成是尽力而为的，失败只记录日志
	if err := s.writeThumbnail(filename, data); err != nil {
		log.Printf("[ATTACHMENT] 生成缩略图失败 %s: %v", filename, err)
	}

	return filename, nil
}

// ThumbnailName 返回附件对应缩略图的文件名。
func ThumbnailName(filename string) string {
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext) + "_thumb.jpg"
}

func (s *AttachmentService) writeThumbnail(filename string, data []byte) error {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= thumbnailMaxSide && height <= thumbnailMaxSide {
		return nil
	}

	scale := float64(thumbnailMaxSide) / float64(width)
	if height > width {
		scale = float64(thumbnailMaxSide) / float64(height)
	}
	dstW := int(float64(width) * scale)
	dstH := int(float64(height) * scale)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	out, err := os.Create(filepath.Join(s.dir, ThumbnailName(filename)))
	if err != nil {
		return err
	}
	defer out.Close()

	return jpeg.Encode(out, dst, &jpeg.Options{Quality: 85})
}

package utils

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// CalculateMD5 computes the MD5 hash of a byte slice.
func CalculateMD5(data []byte) string {
	hasher := md5.New()
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

// GenerateFileID 生成存储用的文件标识: 秒级时间戳 + 下划线 + 随机十六进制后缀
// suffixBytes 控制随机部分的字节数，小于等于0时使用3字节
func GenerateFileID(now time.Time, suffixBytes int) string {
	if suffixBytes <= 0 {
		suffixBytes = 3
	}
	buf := make([]byte, suffixBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand 失败时退化为纳秒时间戳的低位
		return now.Format("20060102150405") + "_" + hex.EncodeToString([]byte{byte(now.UnixNano()), byte(now.UnixNano() >> 8)})
	}
	return now.Format("20060102150405") + "_" + hex.EncodeToString(buf)
}

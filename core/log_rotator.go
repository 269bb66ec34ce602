package core

import (
	"fmt"
	"os"
	"sync"
)

// DefaultLogMaxSizeMB 日志文件默认上限
const DefaultLogMaxSizeMB = 50

// LogRotator 带轮转的日志文件写入器，作为 logrus 的输出
// 超过上限时当前文件改名为 <file>.old，只保留一个备份
type LogRotator struct {
	filename    string
	maxSize     int64
	file        *os.File
	currentSize int64
	mu          sync.Mutex
}

// NewLogRotator maxSizeMB <= 0 时使用默认值
func NewLogRotator(filename string, maxSizeMB int) (*LogRotator, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultLogMaxSizeMB
	}
	return newLogRotator(filename, int64(maxSizeMB)*1024*1024)
}

func newLogRotator(filename string, maxBytes int64) (*LogRotator, error) {
	r := &LogRotator{filename: filename, maxSize: maxBytes}
	if err := r.openFile(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *LogRotator) openFile() error {
	file, err := os.OpenFile(r.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	r.file = file
	r.currentSize = stat.Size()
	return nil
}

func (r *LogRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentSize > 0 && r.currentSize+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			// 轮转失败时继续写入当前文件
			fmt.Fprintf(os.Stderr, "Log rotation failed: %v\n", err)
		}
	}

	n, err := r.file.Write(p)
	r.currentSize += int64(n)
	return n, err
}

func (r *LogRotator) rotate() error {
	backup := r.filename + ".old"
	if err := r.file.Close(); err != nil {
		return err
	}
	os.Remove(backup)
	renameErr := os.Rename(r.filename, backup)
	// 无论改名是否成功都重新打开，保证后续写入可用
	if err := r.openFile(); err != nil {
		return err
	}
	return renameErr
}

func (r *LogRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// 通过可替换的函数指针，让测试能稳定模拟 EXDEV 等错误。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename 失败。
// 临时文件与目标同目录，正常不会出现；出现时直接失败，不做 copy+delete。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘移动失败（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice 判断 err 是否为跨盘（EXDEV）错误。
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// WriteFileAtomic 在 dir 下原子写入 name（临时文件 + rename），目标已存在时覆盖。
// 数据集、report.json、HTML 快照都走这里：读者要么看到旧文件，要么看到完整的新文件。
func WriteFileAtomic(dir, name string, data []byte) error {
	f, err := Create(dir, name)
	if err != nil {
		return err
	}
	if err := writeAll(f, data); err != nil {
		f.Abort()
		return err
	}
	return f.Commit()
}

// File 是一个尚未落地的原子写入：先写同目录临时文件，Commit 时 rename 到目标名。
// 适合 CSV/JSONL 这类边生成边写的输出。
type File struct {
	tmp  *os.File
	dir  string
	dst  string
	done bool
}

// Create 在 dir 下为 name 准备一个原子写入。
//
// 约束：
// - 临时文件必须与目标文件在同目录，以保证 rename 的原子性
// - 目标若是目录，返回 PathTypeConflictError
func Create(dir, name string) (*File, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dst := filepath.Join(dir, name)
	if fi, err := os.Lstat(dst); err == nil && fi.IsDir() {
		return nil, &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
	} else if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	// 前缀带 '.'，避免中途失败时在输出目录留下“看起来像结果”的文件。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &File{tmp: tmp, dir: dir, dst: dst}, nil
}

func (f *File) Write(p []byte) (int, error) { return f.tmp.Write(p) }

// Name 返回最终目标路径。
func (f *File) Name() string { return f.dst }

// Commit 刷盘并 rename 到目标名；失败时清理临时文件。
func (f *File) Commit() error {
	if f.done {
		return errors.New("fsx: 重复提交")
	}
	f.done = true
	tmpName := f.tmp.Name()

	err := f.tmp.Chmod(0o644)
	if err == nil {
		err = f.tmp.Sync()
	}
	if cerr := f.tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = Rename(tmpName, f.dst)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(f.dir)
	return nil
}

// Abort 丢弃临时文件；Commit 之后调用无副作用。
func (f *File) Abort() {
	if f.done {
		return
	}
	f.done = true
	_ = f.tmp.Close()
	_ = os.Remove(f.tmp.Name())
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

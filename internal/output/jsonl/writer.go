// Package jsonl 实现分配报告的异步 JSONL 写入。
// 调用方只负责投递报告，JSON 编码与文件 I/O 在后台 goroutine 完成。
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"ladder-allocation-engine/internal/core/model"
)

// ErrClosed 写入器已关闭
var ErrClosed = errors.New("报告写入器已关闭")

type opType int

const (
	opWrite opType = iota
	opFlush
	opClose
)

type op struct {
	typ    opType
	report *model.FillReport
	done   chan error
}

// Stats 写入统计
type Stats struct {
	// Written 成功编码写入缓冲区的报告数
	Written int64 `json:"written"`
	// Failed 编码或写入失败的报告数
	Failed int64 `json:"failed"`
}

// ReportWriter 异步报告写入器
// 每条 FillReport 编码为一行 JSON；编码失败不会中断后续写入，
// 首个失败原因在 Flush/Close 时返回。
type ReportWriter struct {
	// path 输出文件路径
	path string
	// ch 操作通道
	ch chan op

	written atomic.Int64
	failed  atomic.Int64
	closed  atomic.Bool

	closeOnce sync.Once
	closeErr  error

	// sendMu 保证 Close 之后不再向 ch 投递
	sendMu sync.Mutex

	wg sync.WaitGroup
}

// NewReportWriter 创建报告写入器
// 已存在的文件会被清空，每次运行只保留本次报告
// 参数 path: 输出文件路径，目录不存在时自动创建
// 参数 bufferSize: 投递队列容量，<=0 时使用 1000
func NewReportWriter(path string, bufferSize int) (*ReportWriter, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开输出文件失败: %w", err)
	}

	w := &ReportWriter{
		path: path,
		ch:   make(chan op, bufferSize),
	}

	w.wg.Add(1)
	go w.loop(f)

	return w, nil
}

// Path 输出文件路径
func (w *ReportWriter) Path() string {
	return w.path
}

// Write 投递一条报告
// 返回: 写入器已关闭或报告为空时返回错误
func (w *ReportWriter) Write(r *model.FillReport) error {
	if w == nil {
		return fmt.Errorf("报告写入器为空")
	}
	if r == nil {
		return fmt.Errorf("报告为空")
	}
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if w.closed.Load() {
		return ErrClosed
	}
	w.ch <- op{typ: opWrite, report: r}
	return nil
}

// Flush 等待已投递报告全部写入文件
func (w *ReportWriter) Flush() error {
	if w == nil {
		return nil
	}
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if w.closed.Load() {
		return nil
	}
	done := make(chan error, 1)
	w.ch <- op{typ: opFlush, done: done}
	return <-done
}

// Close 关闭写入器（会先 flush）
func (w *ReportWriter) Close() error {
	if w == nil {
		return nil
	}
	w.closeOnce.Do(func() {
		w.sendMu.Lock()
		defer w.sendMu.Unlock()
		w.closed.Store(true)
		done := make(chan error, 1)
		w.ch <- op{typ: opClose, done: done}
		w.closeErr = <-done
		close(w.ch)
	})
	w.wg.Wait()
	return w.closeErr
}

// Stats 返回写入统计
func (w *ReportWriter) Stats() Stats {
	return Stats{Written: w.written.Load(), Failed: w.failed.Load()}
}

func (w *ReportWriter) loop(f *os.File) {
	defer w.wg.Done()

	bw := bufio.NewWriterSize(f, 64<<10)
	enc := json.NewEncoder(bw)
	var firstErr error
	record := func(err error) {
		w.failed.Add(1)
		if firstErr == nil {
			firstErr = err
		}
	}
	result := func(err error) error {
		if err != nil {
			return err
		}
		return firstErr
	}

	for req := range w.ch {
		switch req.typ {
		case opWrite:
			// Encoder 自带换行
			if err := enc.Encode(req.report); err != nil {
				record(fmt.Errorf("写入报告 %s 失败: %w", req.report.PlanID, err))
				continue
			}
			w.written.Add(1)
		case opFlush:
			req.done <- result(bw.Flush())
		case opClose:
			err := bw.Flush()
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			req.done <- result(err)
			return
		}
	}
}

// Package trades 从本地文件读取历史成交。
// 支持 .jsonl 与 .csv 两种格式，按扩展名分派。
package trades

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"ladder-allocation-engine/internal/core/model"
	"ladder-allocation-engine/internal/util/fastparse"
	"ladder-allocation-engine/internal/util/timeutil"
)

// ErrUnsupportedFormat 不支持的文件格式
var ErrUnsupportedFormat = errors.New("不支持的成交文件格式")

// maxLineBytes 单行最大长度
const maxLineBytes = 1 << 20

// ReadFile 读取成交文件
// 参数 path: 文件路径，扩展名为 .jsonl 或 .csv
// 返回: 文件中的全部成交（保持文件顺序）
func ReadFile(path string) ([]model.Trade, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开成交文件失败: %w", err)
	}
	defer f.Close()

	var out []model.Trade
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		out, err = ReadJSONL(f)
	case ".csv":
		out, err = ReadCSV(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// jsonTrade JSONL 行结构
// trade_time 可以是 RFC3339 字符串或 Unix 毫秒整数
type jsonTrade struct {
	ID        string          `json:"id"`
	Price     json.Number     `json:"price"`
	Quantity  json.Number     `json:"quantity"`
	Fee       json.Number     `json:"fee"`
	TradeTime json.RawMessage `json:"trade_time"`
}

// ReadJSONL 读取 JSONL 格式成交，每行一个对象，空行忽略
func ReadJSONL(r io.Reader) ([]model.Trade, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []model.Trade
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		var jt jsonTrade
		if err := json.Unmarshal(raw, &jt); err != nil {
			return nil, fmt.Errorf("第 %d 行: 解析 JSON 失败: %w", line, err)
		}
		tradeTime, err := jsonTime(jt.TradeTime)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", line, err)
		}
		t, err := build(jt.ID, string(jt.Price), string(jt.Quantity), string(jt.Fee))
		if err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", line, err)
		}
		t.TradeTime = tradeTime
		out = append(out, t)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("读取第 %d 行后失败: %w", line, err)
	}
	return out, nil
}

// ReadCSV 读取 CSV 格式成交
// 首行为表头，必须包含 price, quantity, trade_time；fee 与 id 可选
func ReadCSV(r io.Reader) ([]model.Trade, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("缺少表头")
		}
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range []string{"price", "quantity", "trade_time"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("表头缺少列 %q", name)
		}
	}
	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var out []model.Trade
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)

		t, err := build(field(rec, "id"), field(rec, "price"), field(rec, "quantity"), field(rec, "fee"))
		if err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", line, err)
		}
		t.TradeTime, err = timeutil.ParseTradeTime(field(rec, "trade_time"))
		if err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", line, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// build 解析数值字段并构造成交
// 缺少 ID 时分配 uuid
func build(id, price, quantity, fee string) (model.Trade, error) {
	var t model.Trade
	var err error

	if t.Price, err = fastparse.ParseFloat(price); err != nil {
		return t, fmt.Errorf("价格无效 %q: %w", price, err)
	}
	if !model.IsFinitePositive(t.Price) {
		return t, fmt.Errorf("价格必须为正数: %v", t.Price)
	}
	if t.Quantity, err = fastparse.ParseFloat(quantity); err != nil {
		return t, fmt.Errorf("数量无效 %q: %w", quantity, err)
	}
	if !model.IsFinitePositive(t.Quantity) {
		return t, fmt.Errorf("数量必须为正数: %v", t.Quantity)
	}
	if t.Fee, err = fastparse.ParseOptionalFloat(fee); err != nil {
		return t, fmt.Errorf("手续费无效 %q: %w", fee, err)
	}
	if !model.IsFiniteNonNegative(t.Fee) {
		return t, fmt.Errorf("手续费不能为负数: %v", t.Fee)
	}
	if !t.Valid() {
		return t, fmt.Errorf("成交金额溢出: %v × %v", t.Price, t.Quantity)
	}

	t.ID = strings.TrimSpace(id)
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return t, nil
}

func jsonTime(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, fmt.Errorf("缺少 trade_time")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("trade_time 无效: %w", err)
		}
		return timeutil.ParseTradeTime(s)
	}
	return timeutil.ParseTradeTime(string(raw))
}

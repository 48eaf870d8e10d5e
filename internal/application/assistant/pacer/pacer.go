// Package pacer 将一段完整回复拆分为多条消息，并按时间间隔依次投递
package pacer

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var blankLine = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

// Policy 投递节奏
type Policy struct {
	// MinDelay 非首段的最小间隔
	MinDelay time.Duration
	// PerRune 按上一段字符数计算的间隔；为 0 时每段固定等待 MinDelay
	PerRune time.Duration
}

// ReviewPolicy 审阅流程：按上一段长度计算，最少 1 秒
func ReviewPolicy() Policy {
	return Policy{MinDelay: time.Second, PerRune: 30 * time.Millisecond}
}

// DialoguePolicy 自由对话：每段固定 800 毫秒
func DialoguePolicy() Policy {
	return Policy{MinDelay: 800 * time.Millisecond}
}

// Step 投递计划中的一步
type Step struct {
	Segment string
	Delay   time.Duration
}

// Split 按空行拆分，去除首尾空白并丢弃空段
func Split(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := blankLine.Split(text, -1)
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// Plan 生成有序投递计划，首段无延迟
func Plan(text string, policy Policy) []Step {
	segments := Split(text)
	steps := make([]Step, len(segments))
	for i, seg := range segments {
		steps[i] = Step{Segment: seg}
		if i > 0 {
			steps[i].Delay = policy.delayAfter(segments[i-1])
		}
	}
	return steps
}

func (p Policy) delayAfter(prev string) time.Duration {
	if p.PerRune <= 0 {
		return p.MinDelay
	}
	d := time.Duration(utf8.RuneCountInString(prev)) * p.PerRune
	if d < p.MinDelay {
		return p.MinDelay
	}
	return d
}

// Clock 可注入的时钟，测试中使用确定性实现
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock 返回基于系统时间的时钟
func RealClock() Clock { return realClock{} }

// Sink 接收按序投递的段落
type Sink func(index int, segment string) error

// Pacer 按计划依次投递段落；同一时刻只有 Pacer 写入对话日志
type Pacer struct {
	clock Clock
}

// New 创建 Pacer，clock 为 nil 时使用系统时钟
func New(clock Clock) *Pacer {
	if clock == nil {
		clock = RealClock()
	}
	return &Pacer{clock: clock}
}

// Deliver 按计划投递，返回已投递的段数；ctx 取消时停止后续投递
func (p *Pacer) Deliver(ctx context.Context, text string, policy Policy, sink Sink) (int, error) {
	delivered := 0
	for i, step := range Plan(text, policy) {
		if step.Delay > 0 {
			select {
			case <-ctx.Done():
				return delivered, ctx.Err()
			case <-p.clock.After(step.Delay):
			}
		} else if err := ctx.Err(); err != nil {
			return delivered, err
		}

		if err := sink(i, step.Segment); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}

// Package filter 实现消息内容过滤：去除 HTML 活动标记和屏蔽词替换。
package filter

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

//go:embed words.yaml
var defaultWords []byte

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

type wordList struct {
	Words []string `yaml:"words"`
}

// Filter 实现 chat.ContentFilter，可并发使用。
type Filter struct {
	policy *bluemonday.Policy
	words  map[string]struct{}
}

// New 使用内置词表；extra 中的词追加到词表。
func New(extra ...string) (*Filter, error) {
	words, err := parseWords(defaultWords)
	if err != nil {
		return nil, fmt.Errorf("parse default words: %w", err)
	}
	return build(append(words, extra...)), nil
}

// Load 从 YAML 文件读取词表，path 为空时等同于 New()。
func Load(path string) (*Filter, error) {
	if path == "" {
		return New()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read words file: %w", err)
	}
	words, err := parseWords(raw)
	if err != nil {
		return nil, fmt.Errorf("parse words file %s: %w", path, err)
	}
	return build(words), nil
}

func parseWords(raw []byte) ([]string, error) {
	var wl wordList
	if err := yaml.Unmarshal(raw, &wl); err != nil {
		return nil, err
	}
	if len(wl.Words) == 0 {
		return nil, errors.New("empty word list")
	}
	return wl.Words, nil
}

func build(words []string) *Filter {
	f := &Filter{
		policy: bluemonday.StrictPolicy(),
		words:  make(map[string]struct{}, len(words)),
	}
	fold := cases.Fold()
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		f.words[fold.String(w)] = struct{}{}
	}
	return f
}

// SanitizeMarkup 去掉所有 HTML 标签，保留文本内容。
func (f *Filter) SanitizeMarkup(text string) string {
	return f.policy.Sanitize(text)
}

// FilterProfanity 把命中词表的整词替换为等长的星号，匹配不区分大小写。
func (f *Filter) FilterProfanity(text string) (string, error) {
	if f == nil || len(f.words) == 0 {
		return text, errors.New("profanity filter not initialised")
	}
	return wordPattern.ReplaceAllStringFunc(text, func(word string) string {
		// cases.Caser 有内部状态，不能跨 goroutine 共享
		if _, ok := f.words[cases.Fold().String(word)]; !ok {
			return word
		}
		return strings.Repeat("*", len([]rune(word)))
	}), nil
}

// Size 返回词表中的词数。
func (f *Filter) Size() int { return len(f.words) }

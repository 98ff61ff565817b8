package model

import "github.com/cloudwego/eino/schema"

// ClassifyInput 意图分类输入
type ClassifyInput struct {
	Provider string
	Message  string
	History  []*schema.Message
}

// AnswerInput 问答生成输入
type AnswerInput struct {
	Provider string
	Model    string
	Question string
	// Context 已格式化的召回上下文（或无上下文占位）
	Context     string
	History     []*schema.Message
	Temperature *float32
	MaxTokens   *int
}

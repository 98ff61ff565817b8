package retrieval

import (
	"time"

	"rag-chat-api/internal/domain/entity"
)

const (
	DefaultTopK      = 8
	DefaultThreshold = 0.25
	// 多取一些候选，避免同分项在截断边界被向量库随意裁掉
	candidateFactor = 2
)

// Options 检索参数
type Options struct {
	TopK      int
	Threshold float64
}

func DefaultOptions() Options {
	return Options{TopK: DefaultTopK, Threshold: DefaultThreshold}
}

func (o Options) normalized() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.Threshold < 0 {
		o.Threshold = 0
	}
	return o
}

// Result 一条召回结果，Score 已钳制到 [0,1]
type Result struct {
	ChunkID   string
	AssetID   string
	AssetKind entity.AssetKind
	Text      string
	Score     float64
	CreatedAt time.Time
}

// Package callback 注册 Eino 全局回调：模型调用的追踪、指标与用量
package callback

import (
	"sync"

	einocallbacks "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
)

type einoStream = schema.StreamReader[*model.CallbackOutput]

var initOnce sync.Once

// Init 注册 Eino 全局 callbacks（进程级一次）。
func Init(observe UsageObserver) {
	initOnce.Do(func() {
		handler := cbtemplate.NewHandlerHelper().
			ChatModel(newChatModelCallbackHandler(observe)).
			Handler()
		einocallbacks.AppendGlobalHandlers(handler)
	})
}

// Package callback 提供 Eino Callback 日志支持
package callback

import (
	"context"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/quiz-pool/internal/logger"
)

// Logger 日志回调处理器
// 实现 callbacks.Handler 接口，记录模型调用的耗费和错误
type Logger struct {
	log         *logger.Logger
	EnableDebug bool // 是否记录每次调用的开始和结束
}

var _ callbacks.Handler = (*Logger)(nil)

// NewLogger 创建日志回调处理器
func NewLogger(log *logger.Logger, enableDebug bool) *Logger {
	return &Logger{log: log.With("component", "eino"), EnableDebug: enableDebug}
}

// OnStart 组件执行开始时调用
func (l *Logger) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if l.EnableDebug {
		kv := []interface{}{"name", info.Name, "type", info.Type, "component", info.Component}
		if in := model.ConvCallbackInput(input); in != nil {
			kv = append(kv, "messages", len(in.Messages))
		}
		l.log.Debug("component start", kv...)
	}
	return ctx
}

// OnEnd 组件执行成功结束时调用
func (l *Logger) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if !l.EnableDebug {
		return ctx
	}
	kv := []interface{}{"name", info.Name, "type", info.Type, "component", info.Component}
	if out := model.ConvCallbackOutput(output); out != nil && out.TokenUsage != nil {
		kv = append(kv,
			"prompt_tokens", out.TokenUsage.PromptTokens,
			"completion_tokens", out.TokenUsage.CompletionTokens,
			"total_tokens", out.TokenUsage.TotalTokens)
	}
	l.log.Debug("component end", kv...)
	return ctx
}

// OnError 组件执行出错时调用
func (l *Logger) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	l.log.Warn("component error",
		"name", info.Name, "type", info.Type, "component", info.Component, "error", err)
	return ctx
}

// OnStartWithStreamInput 流式输入开始时调用
func (l *Logger) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo, input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

// OnEndWithStreamOutput 流式输出结束时调用
func (l *Logger) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}

// WithRunInfo 为一次直接调用的对话模型初始化回调上下文，全局处理器由此生效
func WithRunInfo(ctx context.Context, name, typ string) context.Context {
	return callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      name,
		Type:      typ,
		Component: components.ComponentOfChatModel,
	})
}

// SetupGlobalCallbacks 设置全局回调，进程启动时调用一次
func SetupGlobalCallbacks(log *logger.Logger, enableDebug bool) {
	callbacks.AppendGlobalHandlers(NewLogger(log, enableDebug))
	log.Info("eino global callbacks registered", "debug", enableDebug)
}

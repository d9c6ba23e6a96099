package utils

import (
	"context"

	"bitbucket.org/pushfeedback/feedback_backend/appctx"
)

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyChatId        = appctx.ContextKeyChatId
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyCorrelationId, correlationId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyCorrelationId)
}

func SetChatIdInContext(ctx context.Context, chatId int64) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyChatId, chatId)
}

func GetChatIdFromContext(ctx context.Context) (int64, bool) {
	return appctx.GetInt64(ctx, appctx.ContextKeyChatId)
}

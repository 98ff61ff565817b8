package chat

import apperrors "rag-chat-api/pkg/errors"

var (
	ErrSessionBusy = apperrors.New(apperrors.CodeConflict, "session is busy with another message")

	errGenerationFailed = apperrors.New(apperrors.CodeGenerationFailed, "answer generation failed")
)

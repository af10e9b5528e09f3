package in

import (
	"context"

	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
)

type AbuseGuardUseCase interface {
	RecordAttempt(ctx context.Context, kind domain.AttemptKind, subject domain.SubjectKeys) error

	// CheckStatus не блокирует: чистое вычисление над счетчиками.
	// При недоступности хранилища счетчики читаются как нулевые (fail open)
	CheckStatus(ctx context.Context, subject domain.SubjectKeys) domain.ChallengeStatus

	// RecordSuspicious фиксирует подозрительную активность, три и более записи
	// в окне отслеживания заносят субъекта в черный список на 24 часа
	RecordSuspicious(ctx context.Context, subjectKey string, note string) error

	GenerateChallenge(ctx context.Context, subjectKey string) (domain.ChallengeQuestion, error)
	VerifyChallenge(ctx context.Context, subjectKey string, answer string) (bool, error)
	RecordFailedChallenge(ctx context.Context, subjectKey string) error
	ResetOnSuccess(ctx context.Context, subject domain.SubjectKeys) error
}

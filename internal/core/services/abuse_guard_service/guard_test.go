package abuse_guard_service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suchimauz/clinic-appointment-engine/internal/adapters/out/kv"
	"github.com/suchimauz/clinic-appointment-engine/internal/adapters/out/logger"
	"github.com/suchimauz/clinic-appointment-engine/internal/config"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
)

func newTestGuard(t *testing.T) (*AbuseGuardService, *time.Time) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Guard.Window = 24 * time.Hour
	cfg.Guard.MaxPerSubject = 10
	cfg.Guard.MaxPerEmail = 5
	cfg.Guard.MaxPerPhone = 3
	cfg.Guard.MaxFailedLogins = 5
	cfg.Guard.Cooldown = time.Hour
	cfg.Guard.BlacklistAfter = 3
	cfg.Guard.BlacklistFor = 24 * time.Hour
	cfg.Guard.ChallengeRegen = 3
	cfg.Guard.ChallengeCooldown = 5

	guard := NewAbuseGuardService(kv.NewMemoryKeyValueAdapter(), logger.NewNopLogger(), cfg)

	now := time.Now()
	guard.nowFn = func() time.Time { return now }

	return guard, &now
}

func testSubject() domain.SubjectKeys {
	return domain.SubjectKeys{
		Subject: "10.0.0.1",
		Email:   "patient@example.com",
		Phone:   "+79990001122",
	}
}

func TestGuard_PhoneLimit(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()
	subject := testSubject()

	// Лимит на телефон - 3, третья попытка еще проходит
	for i := 0; i < 3; i++ {
		require.NoError(t, guard.RecordAttempt(ctx, domain.AttemptKindBooking, subject))
	}
	status := guard.CheckStatus(ctx, subject)
	assert.False(t, status.RequiresChallenge)

	// Четвертая превышает лимит
	require.NoError(t, guard.RecordAttempt(ctx, domain.AttemptKindBooking, subject))
	status = guard.CheckStatus(ctx, subject)
	require.True(t, status.RequiresChallenge)
	assert.Equal(t, domain.ChallengeReasonPhoneLimit, status.Reason)
	assert.Greater(t, status.CooldownRemaining, time.Duration(0))
}

func TestGuard_WindowExpiry(t *testing.T) {
	guard, now := newTestGuard(t)
	ctx := context.Background()
	subject := testSubject()

	for i := 0; i < 4; i++ {
		require.NoError(t, guard.RecordAttempt(ctx, domain.AttemptKindBooking, subject))
	}
	require.True(t, guard.CheckStatus(ctx, subject).RequiresChallenge)

	// Через сутки окно пустое
	*now = now.Add(25 * time.Hour)
	assert.False(t, guard.CheckStatus(ctx, subject).RequiresChallenge)
}

func TestGuard_CooldownResetsTrippedLimit(t *testing.T) {
	guard, now := newTestGuard(t)
	ctx := context.Background()
	subject := testSubject()

	for i := 0; i < 4; i++ {
		require.NoError(t, guard.RecordAttempt(ctx, domain.AttemptKindBooking, subject))
	}
	require.True(t, guard.CheckStatus(ctx, subject).RequiresChallenge)

	// После часа без попыток лимит остывает и сбрасывается
	*now = now.Add(time.Hour + time.Minute)
	assert.False(t, guard.CheckStatus(ctx, subject).RequiresChallenge)
}

func TestGuard_FailedLoginLimit(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()
	subject := domain.SubjectKeys{Subject: "10.0.0.2"}

	for i := 0; i < 6; i++ {
		require.NoError(t, guard.RecordAttempt(ctx, domain.AttemptKindLogin, subject))
	}

	status := guard.CheckStatus(ctx, subject)
	require.True(t, status.RequiresChallenge)
	assert.Equal(t, domain.ChallengeReasonLoginLimit, status.Reason)
}

func TestGuard_ResetOnSuccessClearsOnlyLoginCounter(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()
	subject := testSubject()

	for i := 0; i < 6; i++ {
		require.NoError(t, guard.RecordAttempt(ctx, domain.AttemptKindLogin, subject))
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, guard.RecordAttempt(ctx, domain.AttemptKindBooking, subject))
	}

	require.NoError(t, guard.ResetOnSuccess(ctx, subject))

	// Логин-счетчик сброшен, лимит на телефон остался
	status := guard.CheckStatus(ctx, subject)
	require.True(t, status.RequiresChallenge)
	assert.Equal(t, domain.ChallengeReasonPhoneLimit, status.Reason)
}

func TestGuard_BlacklistAfterSuspicious(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()
	subject := testSubject()

	require.NoError(t, guard.RecordSuspicious(ctx, subject.Subject, "scripted booking"))
	require.NoError(t, guard.RecordSuspicious(ctx, subject.Subject, "scripted booking"))
	assert.False(t, guard.CheckStatus(ctx, subject).RequiresChallenge)

	// Третья запись заносит субъекта в черный список
	require.NoError(t, guard.RecordSuspicious(ctx, subject.Subject, "scripted booking"))

	status := guard.CheckStatus(ctx, subject)
	require.True(t, status.RequiresChallenge)
	assert.Equal(t, domain.ChallengeReasonBlacklisted, status.Reason)
}

func TestGuard_BlacklistExpires(t *testing.T) {
	guard, now := newTestGuard(t)
	ctx := context.Background()
	subject := testSubject()

	for i := 0; i < 3; i++ {
		require.NoError(t, guard.RecordSuspicious(ctx, subject.Subject, "scripted booking"))
	}
	require.True(t, guard.CheckStatus(ctx, subject).RequiresChallenge)

	*now = now.Add(25 * time.Hour)
	assert.False(t, guard.CheckStatus(ctx, subject).RequiresChallenge)
}

func TestGuard_FailOpenOnStoreErrors(t *testing.T) {
	cfg := &config.Config{}
	cfg.Guard.Window = 24 * time.Hour
	cfg.Guard.MaxPerPhone = 3
	cfg.Guard.Cooldown = time.Hour

	guard := NewAbuseGuardService(&failingKV{}, logger.NewNopLogger(), cfg)
	ctx := context.Background()
	subject := testSubject()

	// Недоступное хранилище не блокирует запись
	require.NoError(t, guard.RecordAttempt(ctx, domain.AttemptKindBooking, subject))
	assert.False(t, guard.CheckStatus(ctx, subject).RequiresChallenge)
}

func TestChallenge_VerifyNormalizesAnswer(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	question, err := guard.GenerateChallenge(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, question.Question)

	passed, err := guard.VerifyChallenge(ctx, "10.0.0.1", "  "+strings.ToUpper(question.Answer)+" ")
	require.NoError(t, err)
	assert.True(t, passed)
}

func TestChallenge_RegeneratedAfterConsecutiveFails(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	question, err := guard.GenerateChallenge(ctx, "10.0.0.1")
	require.NoError(t, err)
	originalAnswer := question.Answer

	// Три неудачи подряд перегенерируют вопрос
	for i := 0; i < 3; i++ {
		passed, err := guard.VerifyChallenge(ctx, "10.0.0.1", "wrong")
		require.NoError(t, err)
		require.False(t, passed)
	}

	guard.mu.Lock()
	session := guard.sessions["10.0.0.1"]
	guard.mu.Unlock()
	require.NotNil(t, session)
	assert.Equal(t, 3, session.consecutiveFails)

	// Старый ответ больше не принимается, если вопрос сменился
	if session.answer != originalAnswer {
		passed, err := guard.VerifyChallenge(ctx, "10.0.0.1", originalAnswer)
		require.NoError(t, err)
		assert.False(t, passed)
	}
}

func TestChallenge_CooldownAfterTooManyFails(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.GenerateChallenge(ctx, "10.0.0.1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := guard.VerifyChallenge(ctx, "10.0.0.1", "wrong")
		require.NoError(t, err)
	}

	// Пять неудач включают кулдаун, новый вопрос не выдается
	_, err = guard.GenerateChallenge(ctx, "10.0.0.1")
	require.Error(t, err)

	var challengeErr *domain.ChallengeRequiredError
	require.ErrorAs(t, err, &challengeErr)
	assert.Equal(t, domain.ChallengeReasonCooldown, challengeErr.Reason)

	status := guard.CheckStatus(ctx, domain.SubjectKeys{Subject: "10.0.0.1"})
	require.True(t, status.RequiresChallenge)
	assert.Equal(t, domain.ChallengeReasonCooldown, status.Reason)
}

func TestChallenge_CooldownExpiryResetsFailCounter(t *testing.T) {
	guard, now := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.GenerateChallenge(ctx, "10.0.0.1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := guard.VerifyChallenge(ctx, "10.0.0.1", "wrong")
		require.NoError(t, err)
	}
	require.True(t, guard.CheckStatus(ctx, domain.SubjectKeys{Subject: "10.0.0.1"}).RequiresChallenge)

	// Кулдаун истек, состояние чистое
	*now = now.Add(2 * time.Hour)
	require.False(t, guard.CheckStatus(ctx, domain.SubjectKeys{Subject: "10.0.0.1"}).RequiresChallenge)

	// Одна неудача после остывания порог не набирает
	require.NoError(t, guard.RecordFailedChallenge(ctx, "10.0.0.1"))
	status := guard.CheckStatus(ctx, domain.SubjectKeys{Subject: "10.0.0.1"})
	assert.False(t, status.RequiresChallenge)

	// Порог набирается заново целиком
	for i := 0; i < 4; i++ {
		require.NoError(t, guard.RecordFailedChallenge(ctx, "10.0.0.1"))
	}
	status = guard.CheckStatus(ctx, domain.SubjectKeys{Subject: "10.0.0.1"})
	require.True(t, status.RequiresChallenge)
	assert.Equal(t, domain.ChallengeReasonCooldown, status.Reason)
}

func TestChallenge_SuccessClearsSession(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	question, err := guard.GenerateChallenge(ctx, "10.0.0.1")
	require.NoError(t, err)

	passed, err := guard.VerifyChallenge(ctx, "10.0.0.1", question.Answer)
	require.NoError(t, err)
	require.True(t, passed)

	guard.mu.Lock()
	_, exists := guard.sessions["10.0.0.1"]
	guard.mu.Unlock()
	assert.False(t, exists)
}

func TestChallenge_AnswerIsSumOfOperands(t *testing.T) {
	question, answer := newArithmeticChallenge()

	var a, b int
	_, err := fmt.Sscanf(question, "What is %d + %d?", &a, &b)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(a+b), answer)
}

// failingKV имитирует недоступное kv-хранилище
type failingKV struct{}

func (f *failingKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, assert.AnError
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return assert.AnError
}

func (f *failingKV) Delete(ctx context.Context, key string) error {
	return assert.AnError
}

package abuse_guard_service

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/out"
)

// challengeSession - активный арифметический вопрос субъекта.
// Сессии живут в памяти: при рестарте субъект просто получит новый вопрос
type challengeSession struct {
	question         string
	answer           string
	consecutiveFails int
	cooldownUntil    time.Time
}

// expireCooldown сбрасывает истекший кулдаун вместе со счетчиком неудач:
// после остывания порог набирается заново, а не с одной попытки
func (s *challengeSession) expireCooldown(now time.Time) {
	if s.cooldownUntil.IsZero() || s.cooldownUntil.After(now) {
		return
	}
	s.cooldownUntil = time.Time{}
	s.consecutiveFails = 0
}

func (s *AbuseGuardService) GenerateChallenge(ctx context.Context, subjectKey string) (domain.ChallengeQuestion, error) {
	now := s.nowFn()

	if remaining := s.challengeCooldownRemaining(subjectKey, now); remaining > 0 {
		return domain.ChallengeQuestion{}, &domain.ChallengeRequiredError{
			Reason:            domain.ChallengeReasonCooldown,
			CooldownRemaining: remaining,
		}
	}

	question, answer := newArithmeticChallenge()

	s.mu.Lock()
	session, ok := s.sessions[subjectKey]
	if !ok {
		session = &challengeSession{}
		s.sessions[subjectKey] = session
	}
	session.question = question
	session.answer = answer
	s.mu.Unlock()

	s.logger.Debug("guard.challenge.generated", out.LogFields{
		"subjectKey": subjectKey,
	})

	return domain.ChallengeQuestion{Question: question, Answer: answer}, nil
}

func (s *AbuseGuardService) VerifyChallenge(ctx context.Context, subjectKey string, answer string) (bool, error) {
	s.mu.Lock()
	session, ok := s.sessions[subjectKey]
	if !ok {
		s.mu.Unlock()
		return false, &domain.ValidationError{
			Field:   "challenge",
			Message: "no active challenge",
		}
	}
	expected := session.answer
	s.mu.Unlock()

	// Ответ нормализуется: пробелы и регистр не влияют
	normalized := strings.ToLower(strings.TrimSpace(answer))
	if normalized == expected {
		if err := s.ResetOnSuccess(ctx, domain.SubjectKeys{Subject: subjectKey}); err != nil {
			return true, err
		}
		return true, nil
	}

	if err := s.RecordFailedChallenge(ctx, subjectKey); err != nil {
		return false, err
	}
	return false, nil
}

// RecordFailedChallenge считает подряд идущие неудачи: каждые несколько
// неудач вопрос перегенерируется, после порога включается кулдаун
func (s *AbuseGuardService) RecordFailedChallenge(ctx context.Context, subjectKey string) error {
	now := s.nowFn()

	s.mu.Lock()
	session, ok := s.sessions[subjectKey]
	if !ok {
		session = &challengeSession{}
		s.sessions[subjectKey] = session
	}
	session.expireCooldown(now)
	session.consecutiveFails++
	fails := session.consecutiveFails

	if fails%s.cfg.Guard.ChallengeRegen == 0 {
		question, answer := newArithmeticChallenge()
		session.question = question
		session.answer = answer
	}
	if fails >= s.cfg.Guard.ChallengeCooldown {
		session.cooldownUntil = now.Add(s.cfg.Guard.Cooldown)
	}
	s.mu.Unlock()

	s.logger.Debug("guard.challenge.failed", out.LogFields{
		"subjectKey": subjectKey,
		"fails":      fails,
	})

	return nil
}

func (s *AbuseGuardService) challengeCooldownRemaining(subjectKey string, now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[subjectKey]
	if !ok {
		return 0
	}

	session.expireCooldown(now)
	if session.cooldownUntil.IsZero() {
		return 0
	}
	return session.cooldownUntil.Sub(now)
}

func newArithmeticChallenge() (question, answer string) {
	a := rand.Intn(9) + 1
	b := rand.Intn(9) + 1
	return fmt.Sprintf("What is %d + %d?", a, b), strconv.Itoa(a + b)
}

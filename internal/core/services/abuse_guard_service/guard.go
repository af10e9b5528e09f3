package abuse_guard_service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/suchimauz/clinic-appointment-engine/internal/config"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/out"
)

// suspiciousRecord - отметка подозрительной активности субъекта
type suspiciousRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// AbuseGuardService - скользящие окна попыток по субъекту, почте и телефону,
// черный список и арифметическая проверка.
// При недоступности kv счетчики читаются как нулевые: гейт не должен
// блокировать легитимную запись из-за отказа хранилища (fail open)
type AbuseGuardService struct {
	kvPort out.KeyValuePort
	logger out.LoggerPort
	cfg    *config.Config
	nowFn  func() time.Time

	mu       sync.Mutex
	sessions map[string]*challengeSession
}

func NewAbuseGuardService(kvPort out.KeyValuePort, logger out.LoggerPort, cfg *config.Config) *AbuseGuardService {
	return &AbuseGuardService{
		kvPort:   kvPort,
		logger:   logger.WithModule("AbuseGuardService"),
		cfg:      cfg,
		nowFn:    time.Now,
		sessions: make(map[string]*challengeSession),
	}
}

func attemptsKey(kind domain.AttemptKind, dimension, value string) string {
	return "guard:attempts:" + string(kind) + ":" + dimension + ":" + value
}

func blacklistKey(subjectKey string) string {
	return "guard:blacklist:" + subjectKey
}

func suspiciousKey(subjectKey string) string {
	return "guard:suspicious:" + subjectKey
}

func (s *AbuseGuardService) RecordAttempt(ctx context.Context, kind domain.AttemptKind, subject domain.SubjectKeys) error {
	record := domain.AttemptRecord{
		Timestamp:     s.nowFn(),
		SubjectKey:    subject.Subject,
		UserAgentHash: subject.UserAgentHash,
	}

	keys := []string{attemptsKey(kind, "subject", subject.Subject)}
	if kind == domain.AttemptKindBooking {
		if subject.Email != "" {
			keys = append(keys, attemptsKey(kind, "email", subject.Email))
		}
		if subject.Phone != "" {
			keys = append(keys, attemptsKey(kind, "phone", subject.Phone))
		}
	}

	for _, key := range keys {
		s.appendRecord(ctx, key, record)
	}

	return nil
}

// appendRecord дописывает попытку в окно ключа, ошибки kv не фатальны
func (s *AbuseGuardService) appendRecord(ctx context.Context, key string, record domain.AttemptRecord) {
	records := s.loadRecords(ctx, key)
	records = append(records, record)

	payload, err := json.Marshal(records)
	if err != nil {
		return
	}

	if err := s.kvPort.Set(ctx, key, payload, s.cfg.Guard.Window); err != nil {
		s.logger.Warn("guard.attempt.save_failed", out.LogFields{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// loadRecords читает окно ключа и вычищает записи старше окна.
// Ошибка чтения дает пустое окно
func (s *AbuseGuardService) loadRecords(ctx context.Context, key string) []domain.AttemptRecord {
	payload, found, err := s.kvPort.Get(ctx, key)
	if err != nil {
		s.logger.Warn("guard.attempts.load_failed", out.LogFields{
			"key":   key,
			"error": err.Error(),
		})
		return nil
	}
	if !found {
		return nil
	}

	var records []domain.AttemptRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil
	}

	cutoff := s.nowFn().Add(-s.cfg.Guard.Window)
	fresh := records[:0]
	for _, record := range records {
		if record.Timestamp.After(cutoff) {
			fresh = append(fresh, record)
		}
	}

	return fresh
}

func (s *AbuseGuardService) CheckStatus(ctx context.Context, subject domain.SubjectKeys) domain.ChallengeStatus {
	now := s.nowFn()

	if entry := s.loadBlacklist(ctx, subject.Subject); entry != nil && entry.Until.After(now) {
		return domain.ChallengeStatus{
			RequiresChallenge: true,
			Reason:            domain.ChallengeReasonBlacklisted,
			CooldownRemaining: entry.Until.Sub(now),
		}
	}

	checks := []struct {
		key    string
		max    int
		reason domain.ChallengeReason
	}{
		{attemptsKey(domain.AttemptKindBooking, "subject", subject.Subject), s.cfg.Guard.MaxPerSubject, domain.ChallengeReasonSubjectLimit},
		{attemptsKey(domain.AttemptKindBooking, "email", subject.Email), s.cfg.Guard.MaxPerEmail, domain.ChallengeReasonEmailLimit},
		{attemptsKey(domain.AttemptKindBooking, "phone", subject.Phone), s.cfg.Guard.MaxPerPhone, domain.ChallengeReasonPhoneLimit},
		{attemptsKey(domain.AttemptKindLogin, "subject", subject.Subject), s.cfg.Guard.MaxFailedLogins, domain.ChallengeReasonLoginLimit},
	}

	for _, check := range checks {
		records := s.loadRecords(ctx, check.key)
		if len(records) <= check.max {
			continue
		}

		last := records[len(records)-1].Timestamp
		since := now.Sub(last)
		if since >= s.cfg.Guard.Cooldown {
			// Остывший лимит сбрасывается
			if err := s.kvPort.Delete(ctx, check.key); err != nil {
				s.logger.Warn("guard.attempts.reset_failed", out.LogFields{
					"key":   check.key,
					"error": err.Error(),
				})
			}
			continue
		}

		return domain.ChallengeStatus{
			RequiresChallenge: true,
			Reason:            check.reason,
			CooldownRemaining: s.cfg.Guard.Cooldown - since,
		}
	}

	if remaining := s.challengeCooldownRemaining(subject.Subject, now); remaining > 0 {
		return domain.ChallengeStatus{
			RequiresChallenge: true,
			Reason:            domain.ChallengeReasonCooldown,
			CooldownRemaining: remaining,
		}
	}

	return domain.ChallengeStatus{}
}

func (s *AbuseGuardService) RecordSuspicious(ctx context.Context, subjectKey string, note string) error {
	now := s.nowFn()
	key := suspiciousKey(subjectKey)

	var records []suspiciousRecord
	if payload, found, err := s.kvPort.Get(ctx, key); err == nil && found {
		_ = json.Unmarshal(payload, &records)
	}

	cutoff := now.Add(-s.cfg.Guard.Window)
	fresh := records[:0]
	for _, record := range records {
		if record.Timestamp.After(cutoff) {
			fresh = append(fresh, record)
		}
	}
	fresh = append(fresh, suspiciousRecord{Timestamp: now, Note: note})

	payload, err := json.Marshal(fresh)
	if err != nil {
		return err
	}
	if err := s.kvPort.Set(ctx, key, payload, s.cfg.Guard.Window); err != nil {
		s.logger.Warn("guard.suspicious.save_failed", out.LogFields{
			"subjectKey": subjectKey,
			"error":      err.Error(),
		})
		return nil
	}

	if len(fresh) >= s.cfg.Guard.BlacklistAfter {
		entry := domain.BlacklistEntry{
			Until: now.Add(s.cfg.Guard.BlacklistFor),
			Count: len(fresh),
		}
		entryPayload, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := s.kvPort.Set(ctx, blacklistKey(subjectKey), entryPayload, s.cfg.Guard.BlacklistFor); err != nil {
			s.logger.Warn("guard.blacklist.save_failed", out.LogFields{
				"subjectKey": subjectKey,
				"error":      err.Error(),
			})
			return nil
		}

		s.logger.Warn("guard.blacklist.added", out.LogFields{
			"subjectKey": subjectKey,
			"count":      len(fresh),
			"until":      entry.Until,
		})
	}

	return nil
}

func (s *AbuseGuardService) loadBlacklist(ctx context.Context, subjectKey string) *domain.BlacklistEntry {
	payload, found, err := s.kvPort.Get(ctx, blacklistKey(subjectKey))
	if err != nil || !found {
		return nil
	}

	var entry domain.BlacklistEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil
	}

	return &entry
}

// ResetOnSuccess сбрасывает только счетчик неуспешных логинов.
// Счетчики записи живут до конца окна независимо от исхода
func (s *AbuseGuardService) ResetOnSuccess(ctx context.Context, subject domain.SubjectKeys) error {
	if err := s.kvPort.Delete(ctx, attemptsKey(domain.AttemptKindLogin, "subject", subject.Subject)); err != nil {
		s.logger.Warn("guard.login.reset_failed", out.LogFields{
			"subjectKey": subject.Subject,
			"error":      err.Error(),
		})
	}

	s.mu.Lock()
	delete(s.sessions, subject.Subject)
	s.mu.Unlock()

	return nil
}

package domain

import "time"

type AttemptKind string

const (
	AttemptKindBooking AttemptKind = "booking"
	AttemptKindLogin   AttemptKind = "login"
)

// AttemptRecord - одна попытка в скользящем окне.
// Записи старше окна вычищаются перед каждым подсчетом
type AttemptRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	SubjectKey    string    `json:"subjectKey"`
	UserAgentHash string    `json:"userAgentHash,omitempty"`
}

// SubjectKeys - идентификаторы вызывающего, передаются явно в каждый вызов AbuseGuard.
// Subject - IP-эквивалент или идентичность из авторизации, вычисляется вызывающим
type SubjectKeys struct {
	Subject       string
	Email         string
	Phone         string
	UserAgentHash string
}

type ChallengeReason string

const (
	ChallengeReasonNone         ChallengeReason = ""
	ChallengeReasonSubjectLimit ChallengeReason = "subject_limit"
	ChallengeReasonEmailLimit   ChallengeReason = "email_limit"
	ChallengeReasonPhoneLimit   ChallengeReason = "phone_limit"
	ChallengeReasonLoginLimit   ChallengeReason = "login_limit"
	ChallengeReasonBlacklisted  ChallengeReason = "blacklisted"
	ChallengeReasonCooldown     ChallengeReason = "challenge_cooldown"
)

// ChallengeStatus - результат проверки состояния гейта
type ChallengeStatus struct {
	RequiresChallenge bool            `json:"requiresChallenge"`
	Reason            ChallengeReason `json:"reason,omitempty"`
	CooldownRemaining time.Duration   `json:"cooldownRemaining,omitempty"`
}

// ChallengeQuestion - арифметический вопрос, ответ хранится только на сервере
type ChallengeQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"-"`
}

// BlacklistEntry - запись черного списка с явным сроком действия
type BlacklistEntry struct {
	Until time.Time `json:"until"`
	Count int       `json:"count"`
}

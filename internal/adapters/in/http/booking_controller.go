package http

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/suchimauz/clinic-appointment-engine/internal/config"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/json_types"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/in"
)

type BookingController struct {
	availability in.AvailabilityUseCase
	settings     in.SettingsUseCase
	booking      in.BookingUseCase
	guard        in.AbuseGuardUseCase
	cfg          *config.Config
}

func NewBookingController(
	availability in.AvailabilityUseCase,
	settings in.SettingsUseCase,
	booking in.BookingUseCase,
	guard in.AbuseGuardUseCase,
	cfg *config.Config,
) *BookingController {
	return &BookingController{
		availability: availability,
		settings:     settings,
		booking:      booking,
		guard:        guard,
		cfg:          cfg,
	}
}

func (c *BookingController) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.Use(c.basicAuth())
	{
		api.GET("/clinics/:clinicId/slots", c.getDaySlots)
		api.POST("/clinics/:clinicId/slots/batch", c.getBatchDaySlots)
		api.GET("/clinics/:clinicId/settings", c.getSettings)
		api.PATCH("/clinics/:clinicId/settings", c.patchSettings)
		api.POST("/clinics/:clinicId/appointments", c.createAppointment)
		api.DELETE("/appointments/:appointmentId", c.cancelAppointment)
		api.POST("/appointments/:appointmentId/reschedule", c.rescheduleAppointment)
		api.GET("/guard/status", c.guardStatus)
		api.POST("/guard/suspicious", c.reportSuspicious)
		api.POST("/guard/challenge", c.generateChallenge)
		api.POST("/guard/challenge/verify", c.verifyChallenge)
	}
}

type BatchDaySlotsRequest struct {
	Dates []string `json:"dates" binding:"required,min=1"`
}

type CreateAppointmentRequest struct {
	Date  string `json:"date" binding:"required"`
	Time  string `json:"time" binding:"required"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type RescheduleAppointmentRequest struct {
	Date string `json:"date" binding:"required"`
	Time string `json:"time" binding:"required"`
}

type VerifyChallengeRequest struct {
	Answer string `json:"answer" binding:"required"`
}

type ReportSuspiciousRequest struct {
	SubjectKey string `json:"subjectKey" binding:"required"`
	Note       string `json:"note"`
}

func (c *BookingController) getDaySlots(ctx *gin.Context) {
	clinicID, err := uuid.Parse(ctx.Param("clinicId"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid clinic ID format"})
		return
	}

	date, err := json_types.ParseDate(ctx.Query("date"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format"})
		return
	}

	generation, err := c.availability.GetDaySlots(ctx.Request.Context(), clinicID, date)
	if err != nil {
		// Выдача деградирует до пустого списка с причиной, клиент сам
		// решает, показывать ли ошибку
		ctx.JSON(http.StatusOK, generation)
		return
	}

	ctx.JSON(http.StatusOK, generation)
}

func (c *BookingController) getBatchDaySlots(ctx *gin.Context) {
	clinicID, err := uuid.Parse(ctx.Param("clinicId"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid clinic ID format"})
		return
	}

	var req BatchDaySlotsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dates := make([]json_types.Date, 0, len(req.Dates))
	for _, raw := range req.Dates {
		date, err := json_types.ParseDate(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format: " + raw})
			return
		}
		dates = append(dates, date)
	}

	generations, err := c.availability.GetBatchDaySlots(ctx.Request.Context(), clinicID, dates)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"results": generations})
}

func (c *BookingController) getSettings(ctx *gin.Context) {
	clinicID, err := uuid.Parse(ctx.Param("clinicId"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid clinic ID format"})
		return
	}

	settings, err := c.settings.Get(ctx.Request.Context(), clinicID)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, settings)
}

func (c *BookingController) patchSettings(ctx *gin.Context) {
	clinicID, err := uuid.Parse(ctx.Param("clinicId"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid clinic ID format"})
		return
	}

	var patch domain.SchedulingConfigPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := c.settings.Set(ctx.Request.Context(), clinicID, patch)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, settings)
}

func (c *BookingController) createAppointment(ctx *gin.Context) {
	clinicID, err := uuid.Parse(ctx.Param("clinicId"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid clinic ID format"})
		return
	}

	var req CreateAppointmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, err := json_types.ParseDate(req.Date)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format"})
		return
	}
	slotTime, err := json_types.ParseDayTime(req.Time)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid time format"})
		return
	}

	subject := c.subjectKeys(ctx)
	subject.Email = req.Email
	subject.Phone = req.Phone

	appointment, err := c.booking.CreateAppointment(ctx.Request.Context(), in.CreateAppointmentInput{
		ClinicID: clinicID,
		Date:     date,
		Time:     slotTime,
		Email:    req.Email,
		Phone:    req.Phone,
		Subject:  subject,
	})
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, appointment)
}

func (c *BookingController) cancelAppointment(ctx *gin.Context) {
	appointmentID, err := uuid.Parse(ctx.Param("appointmentId"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid appointment ID format"})
		return
	}

	if err := c.booking.CancelAppointment(ctx.Request.Context(), appointmentID, c.subjectKeys(ctx)); err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (c *BookingController) rescheduleAppointment(ctx *gin.Context) {
	appointmentID, err := uuid.Parse(ctx.Param("appointmentId"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid appointment ID format"})
		return
	}

	var req RescheduleAppointmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, err := json_types.ParseDate(req.Date)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format"})
		return
	}
	slotTime, err := json_types.ParseDayTime(req.Time)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid time format"})
		return
	}

	appointment, err := c.booking.RescheduleAppointment(ctx.Request.Context(), appointmentID, in.RescheduleAppointmentInput{
		Date:    date,
		Time:    slotTime,
		Subject: c.subjectKeys(ctx),
	})
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, appointment)
}

func (c *BookingController) guardStatus(ctx *gin.Context) {
	subject := c.subjectKeys(ctx)
	subject.Email = ctx.Query("email")
	subject.Phone = ctx.Query("phone")

	status := c.guard.CheckStatus(ctx.Request.Context(), subject)
	ctx.JSON(http.StatusOK, status)
}

// reportSuspicious вызывается доверенными клиентами (fraud-пайплайн, админка)
func (c *BookingController) reportSuspicious(ctx *gin.Context) {
	var req ReportSuspiciousRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := c.guard.RecordSuspicious(ctx.Request.Context(), req.SubjectKey, req.Note); err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (c *BookingController) generateChallenge(ctx *gin.Context) {
	subject := c.subjectKeys(ctx)

	question, err := c.guard.GenerateChallenge(ctx.Request.Context(), subject.Subject)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, question)
}

func (c *BookingController) verifyChallenge(ctx *gin.Context) {
	var req VerifyChallengeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	subject := c.subjectKeys(ctx)

	passed, err := c.guard.VerifyChallenge(ctx.Request.Context(), subject.Subject, req.Answer)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"passed": passed})
}

// subjectKeys строит идентификаторы вызывающего из запроса:
// клиентский IP и хэш user-agent
func (c *BookingController) subjectKeys(ctx *gin.Context) domain.SubjectKeys {
	return domain.SubjectKeys{
		Subject:       ctx.ClientIP(),
		UserAgentHash: hashUserAgent(ctx.Request.UserAgent()),
	}
}

func hashUserAgent(userAgent string) string {
	if userAgent == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(userAgent))
	return hex.EncodeToString(sum[:])[:16]
}

func (c *BookingController) respondError(ctx *gin.Context, err error) {
	var challengeErr *domain.ChallengeRequiredError
	if errors.As(err, &challengeErr) {
		ctx.JSON(http.StatusTooManyRequests, gin.H{
			"error":             "challenge required",
			"reason":            challengeErr.Reason,
			"cooldownRemaining": challengeErr.CooldownRemaining.String(),
		})
		return
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": validationErr.Message,
			"field": validationErr.Field,
		})
		return
	}

	if errors.Is(err, domain.ErrNotFound) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if domain.IsTransient(err) {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "upstream store unavailable"})
		return
	}

	ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (c *BookingController) basicAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		username, password, hasAuth := ctx.Request.BasicAuth()
		if !hasAuth {
			ctx.Header("WWW-Authenticate", "Basic realm=Authorization Required")
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		for _, client := range c.cfg.Auth.BasicClients {
			if subtle.ConstantTimeCompare([]byte(username), []byte(client.Username)) == 1 &&
				subtle.ConstantTimeCompare([]byte(password), []byte(client.Password)) == 1 {
				ctx.Next()
				return
			}
		}

		ctx.Header("WWW-Authenticate", "Basic realm=Authorization Required")
		ctx.AbortWithStatus(http.StatusUnauthorized)
	}
}

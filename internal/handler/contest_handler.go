package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/contest-api/internal/domain/entity"
	"github.com/yourusername/contest-api/internal/domain/repository"
	"github.com/yourusername/contest-api/internal/handler/dto"
	"github.com/yourusername/contest-api/internal/middleware"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
	"github.com/yourusername/contest-api/internal/service"
	"github.com/yourusername/contest-api/internal/service/contestengine"
)

// ViewerHeader - заголовок с ID пользователя, который смотрит статус конкурса
const ViewerHeader = "X-Viewer-ID"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ContestHandler обрабатывает запросы, связанные с конкурсами
type ContestHandler struct {
	contestService *service.ContestService
}

// NewContestHandler создает новый обработчик конкурсов
func NewContestHandler(contestService *service.ContestService) *ContestHandler {
	return &ContestHandler{contestService: contestService}
}

// RegisterRoutes регистрирует маршруты конкурсов. advanceLimiter применяется к ручному продвижению раунда.
func (h *ContestHandler) RegisterRoutes(rg *gin.RouterGroup, advanceLimiter ...gin.HandlerFunc) {
	contests := rg.Group("/contests")
	{
		contests.GET("", h.ListContests)
		contests.GET("/active", h.GetActiveContest)
		contests.GET("/history", h.ListHistory)
		contests.DELETE("/history", middleware.RequireActor(), h.DeleteCompleted)
		contests.POST("", middleware.RequireActor(), h.CreateContest)

		withID := contests.Group("/:id", middleware.ExtractUintParam("id", middleware.ContestIDKey))
		{
			withID.GET("", h.GetContest)
			withID.GET("/status", h.GetStatus)
			withID.GET("/winners", h.GetWinners)
			withID.GET("/rounds", h.ListRounds)
			withID.GET("/rounds/:round",
				middleware.ExtractIntParam("round", middleware.RoundKey, 1, entity.FinalRound),
				h.GetRound)
			withID.GET("/participants", h.ListParticipants)

			admin := withID.Group("", middleware.RequireActor())
			{
				admin.POST("/participants", h.RegisterParticipants)
				admin.POST("/roster/seed", h.SeedRoster)
				admin.POST("/advance", append(advanceLimiter, h.AdvanceRound)...)
				admin.DELETE("", h.DeleteContest)
			}
		}
	}
}

// CreateContest обрабатывает запрос на создание конкурса
func (h *ContestHandler) CreateContest(c *gin.Context) {
	var req dto.CreateContestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.RegistrationStart.IsZero() {
		req.RegistrationStart = time.Now()
	}

	contest, err := h.contestService.CreateContest(c.Request.Context(), service.CreateContestInput{
		Name:              req.Name,
		Variant:           req.Variant,
		RegistrationStart: req.RegistrationStart,
		RegistrationEnd:   req.RegistrationEnd,
	}, middleware.ActorFromContext(c))
	if err != nil {
		h.handleContestError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewContestResponse(contest))
}

// GetContest возвращает конкурс по ID
func (h *ContestHandler) GetContest(c *gin.Context) {
	contestID := c.MustGet(middleware.ContestIDKey).(uint)

	contest, err := h.contestService.GetContest(c.Request.Context(), contestID)
	if err != nil {
		h.handleContestError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewContestResponse(contest))
}

// GetActiveContest возвращает последний незавершённый конкурс
func (h *ContestHandler) GetActiveContest(c *gin.Context) {
	contest, err := h.contestService.GetActiveContest(c.Request.Context())
	if err != nil {
		h.handleContestError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewContestResponse(contest))
}

// ListContests возвращает страницу конкурсов с фильтрацией по статусу и варианту
func (h *ContestHandler) ListContests(c *gin.Context) {
	page, pageSize := parsePagination(c)
	filters := repository.ContestFilters{
		Status:  c.Query("status"),
		Variant: c.Query("variant"),
	}

	contests, total, err := h.contestService.ListContests(c.Request.Context(), filters, pageSize, (page-1)*pageSize)
	if err != nil {
		h.handleContestError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedContestResponse(contests, total, page, pageSize))
}

// ListHistory возвращает завершённые конкурсы
func (h *ContestHandler) ListHistory(c *gin.Context) {
	page, pageSize := parsePagination(c)

	contests, total, err := h.contestService.ListHistory(c.Request.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		h.handleContestError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedContestResponse(contests, total, page, pageSize))
}

// RegisterParticipants регистрирует участников в конкурсе
func (h *ContestHandler) RegisterParticipants(c *gin.Context) {
	contestID := c.MustGet(middleware.ContestIDKey).(uint)

	var req dto.RegisterParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.contestService.RegisterParticipants(c.Request.Context(), contestID, req.SubjectIDs)
	if err != nil {
		h.handleContestError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SeedRoster регистрирует случайных пользователей
func (h *ContestHandler) SeedRoster(c *gin.Context) {
	contestID := c.MustGet(middleware.ContestIDKey).(uint)

	var req dto.SeedRosterRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.contestService.SeedFromUsers(c.Request.Context(), contestID, req.Count)
	if err != nil {
		h.handleContestError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AdvanceRound выполняет следующий раунд вручную
func (h *ContestHandler) AdvanceRound(c *gin.Context) {
	contestID := c.MustGet(middleware.ContestIDKey).(uint)
	actorID := middleware.ActorFromContext(c)

	result, err := h.contestService.AdvanceRound(c.Request.Context(), contestID, actorID)
	if err != nil {
		h.handleContestError(c, err)
		return
	}

	log.Printf("[ContestHandler] Actor %s advanced contest #%d to round %d", actorID, contestID, result.Round)
	c.JSON(http.StatusOK, result)
}

// GetStatus возвращает статус конкурса; viewer_id (или X-Viewer-ID) добавляет положение зрителя
func (h *ContestHandler) GetStatus(c *gin.Context) {
	contestID := c.MustGet(middleware.ContestIDKey).(uint)

	viewerRaw := c.Query("viewer_id")
	if viewerRaw == "" {
		viewerRaw = c.GetHeader(ViewerHeader)
	}
	var viewerID uint
	if viewerRaw != "" {
		v, err := strconv.ParseUint(viewerRaw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid viewer_id"})
			return
		}
		viewerID = uint(v)
	}

	status, err := h.contestService.GetStatus(c.Request.Context(), contestID, viewerID)
	if err != nil {
		h.handleContestError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetWinners возвращает победителей конкурса
func (h *ContestHandler) GetWinners(c *gin.Context) {
	contestID := c.MustGet(middleware.ContestIDKey).(uint)

	winners, err := h.contestService.GetWinners(c.Request.Context(), contestID)
	if err != nil {
		h.handleContestError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contest_id": contestID, "winners": winners})
}

// ListRounds возвращает историю раундов
func (h *ContestHandler) ListRounds(c *gin.Context) {
	contestID := c.MustGet(middleware.ContestIDKey).(uint)

	rounds, err := h.contestService.ListRounds(c.Request.Context(), contestID)
	if err != nil {
		h.handleContestError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contest_id": contestID, "rounds": dto.NewListRoundResponse(rounds)})
}

// GetRound возвращает один раунд с именами выбывших
func (h *ContestHandler) GetRound(c *gin.Context) {
	contestID := c.MustGet(middleware.ContestIDKey).(uint)
	roundNumber := c.MustGet(middleware.RoundKey).(int)

	view, err := h.contestService.GetRound(c.Request.Context(), contestID, roundNumber)
	if err != nil {
		h.handleContestError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"round":            dto.NewRoundResponse(&view.Round),
		"eliminated_users": view.EliminatedUsers,
		"winners":          view.Winners,
	})
}

// ListParticipants возвращает страницу ростера
func (h *ContestHandler) ListParticipants(c *gin.Context) {
	contestID := c.MustGet(middleware.ContestIDKey).(uint)
	page, pageSize := parsePagination(c)

	participants, total, err := h.contestService.ListParticipants(c.Request.Context(), contestID, pageSize, (page-1)*pageSize)
	if err != nil {
		h.handleContestError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedParticipantResponse(participants, total, page, pageSize))
}

// DeleteContest удаляет конкурс
func (h *ContestHandler) DeleteContest(c *gin.Context) {
	contestID := c.MustGet(middleware.ContestIDKey).(uint)

	if err := h.contestService.DeleteContest(c.Request.Context(), contestID); err != nil {
		h.handleContestError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contest deleted"})
}

// DeleteCompleted удаляет все завершённые конкурсы
func (h *ContestHandler) DeleteCompleted(c *gin.Context) {
	deleted, err := h.contestService.DeleteCompleted(c.Request.Context())
	if err != nil {
		h.handleContestError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// parsePagination читает page и page_size с ограничениями
func parsePagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

// handleContestError обрабатывает ошибки сервиса конкурсов
func (h *ContestHandler) handleContestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, contestengine.ErrRoundInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "round_in_progress", "retry": true})
	case errors.Is(err, contestengine.ErrAlreadyCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "already_completed"})
	case errors.Is(err, contestengine.ErrNoActiveParticipants):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "error_type": "no_active_participants"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.Printf("ERROR: Internal server error in ContestHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

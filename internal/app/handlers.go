package app

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires the public booking surface and the authenticated
// admin API onto the router.
func (a *App) RegisterRoutes(r *gin.Engine, auth gin.HandlerFunc) {
	// OAuth2 callback must stay outside the auth middleware.
	r.GET("/oauth2callback", a.GoogleOAuth2CallbackHandler)

	public := r.Group("/scheduling-links/public")
	{
		public.GET("/:slug", a.GetPublicLinkHandler)
		public.POST("/:slug/book", a.BookSlotHandler)
	}

	api := r.Group("/api")
	api.Use(auth)
	{
		links := api.Group("/scheduling-links")
		{
			links.POST("", a.CreateLinkHandler)
			links.GET("", a.ListLinksHandler)
			links.POST("/find-panel-slots", a.FindPanelSlotsHandler)
			links.POST("/check-conflicts", a.CheckConflictsHandler)
		}
		members := api.Group("/team-members")
		{
			members.GET("/:id/availability", a.ListAvailabilityHandler)
			members.PUT("/:id/availability", a.PutAvailabilityHandler)
			members.GET("/:id/exceptions", a.ListExceptionsHandler)
			members.PUT("/:id/exceptions", a.PutExceptionsHandler)
			members.GET("/:id/slots", a.MemberSlotsHandler)
			members.GET("/:id/interviews", a.ListMemberInterviewsHandler)
		}
		api.DELETE("/interviews/:id", a.CancelInterviewHandler)
		api.GET("/calendar/auth", a.GoogleAuthHandler)
	}
}

// GET /scheduling-links/public/:slug
func (a *App) GetPublicLinkHandler(c *gin.Context) {
	ctx := c.Request.Context()
	link, err := a.Store.GetLinkBySlug(ctx, c.Param("slug"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "scheduling link not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := a.Store.IncrementLinkViews(ctx, link.ID); err != nil {
		a.Logger.Warn("failed to bump link view counter", "slug", link.Slug, "error", err)
	}

	now := a.Now()
	status := "active"
	switch {
	case !link.Active:
		status = "inactive"
	case link.Expired(now):
		status = "expired"
	}

	resp := gin.H{
		"name":             link.Name,
		"duration_minutes": link.DurationMinutes,
		"status":           status,
		"slots":            []TimeSlot{},
	}
	if status == "active" {
		slots, err := a.LinkSlots(ctx, link, now)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if slots == nil {
			slots = []TimeSlot{}
		}
		resp["slots"] = slots
	}
	c.JSON(http.StatusOK, resp)
}

type bookSlotReq struct {
	SlotStart      string `json:"slot_start" binding:"required"` // RFC3339
	CandidateEmail string `json:"candidate_email" binding:"required,email"`
	CandidateName  string `json:"candidate_name" binding:"required"`
	Notes          string `json:"notes,omitempty"`
}

// POST /scheduling-links/public/:slug/book
func (a *App) BookSlotHandler(c *gin.Context) {
	var req bookSlotReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	slotStart, err := time.Parse(time.RFC3339, req.SlotStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot_start"})
		return
	}

	iv, err := a.Book(c.Request.Context(), c.Param("slug"), slotStart.UTC(), BookingRequest{
		CandidateEmail: req.CandidateEmail,
		CandidateName:  req.CandidateName,
		Notes:          req.Notes,
	})
	if err != nil {
		be, ok := AsBookingError(err)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(bookingErrorStatus(be.Kind), gin.H{"error": be.Message, "kind": be.Kind})
		return
	}

	c.JSON(http.StatusCreated, iv)
}

func bookingErrorStatus(kind BookingErrorKind) int {
	switch kind {
	case BookingErrSlotTaken:
		return http.StatusConflict
	case BookingErrLinkExpired, BookingErrLinkInactive:
		return http.StatusGone
	case BookingErrInvalidSlot:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type createLinkReq struct {
	EmployerID      string   `json:"employer_id" binding:"required"`
	JobID           *string  `json:"job_id,omitempty"`
	Slug            string   `json:"slug" binding:"required"`
	Name            string   `json:"name" binding:"required"`
	DurationMinutes int      `json:"duration_minutes" binding:"required,min=5"`
	InterviewerIDs  []string `json:"interviewer_ids" binding:"required,min=1"`
	BufferBeforeMin int      `json:"buffer_before_minutes"`
	BufferAfterMin  int      `json:"buffer_after_minutes"`
	MinNoticeHours  int      `json:"min_notice_hours"`
	MaxDaysAhead    int      `json:"max_days_ahead"`
	ExpiresAt       string   `json:"expires_at,omitempty"` // RFC3339
}

// POST /api/scheduling-links
func (a *App) CreateLinkHandler(c *gin.Context) {
	var req createLinkReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link := &SelfSchedulingLink{
		EmployerID:      req.EmployerID,
		JobID:           req.JobID,
		Slug:            req.Slug,
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		InterviewerIDs:  req.InterviewerIDs,
		BufferBeforeMin: req.BufferBeforeMin,
		BufferAfterMin:  req.BufferAfterMin,
		MinNoticeHours:  req.MinNoticeHours,
		MaxDaysAhead:    req.MaxDaysAhead,
		Active:          true,
	}
	if req.MaxDaysAhead <= 0 {
		link.MaxDaysAhead = 14
	}
	if req.ExpiresAt != "" {
		exp, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expires_at"})
			return
		}
		link.ExpiresAt = &exp
	}

	if err := a.Store.CreateLink(c.Request.Context(), link); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, link)
}

// GET /api/scheduling-links?employer_id=
func (a *App) ListLinksHandler(c *gin.Context) {
	employerID := c.Query("employer_id")
	if employerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "employer_id required"})
		return
	}
	links, err := a.Store.ListLinks(c.Request.Context(), employerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, links)
}

type findPanelSlotsReq struct {
	InterviewerIDs  []string `json:"interviewer_ids" binding:"required,min=1"`
	From            string   `json:"from" binding:"required"` // RFC3339
	To              string   `json:"to" binding:"required"`
	DurationMinutes int      `json:"duration_minutes" binding:"required,min=5"`
	BufferBeforeMin int      `json:"buffer_before_minutes"`
	BufferAfterMin  int      `json:"buffer_after_minutes"`
	MinNoticeHours  int      `json:"min_notice_hours"`
}

// POST /api/scheduling-links/find-panel-slots
func (a *App) FindPanelSlotsHandler(c *gin.Context) {
	var req findPanelSlotsReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := SlotParams{
		Duration:     time.Duration(req.DurationMinutes) * time.Minute,
		BufferBefore: time.Duration(req.BufferBeforeMin) * time.Minute,
		BufferAfter:  time.Duration(req.BufferAfterMin) * time.Minute,
		MinStart:     a.Now().Add(time.Duration(req.MinNoticeHours) * time.Hour),
	}

	slots, err := a.Scheduler.IntersectPanel(c.Request.Context(), req.InterviewerIDs, from, to, p)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "interviewer not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if slots == nil {
		slots = []TimeSlot{}
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots, "count": len(slots)})
}

type checkConflictsReq struct {
	InterviewerIDs  []string `json:"interviewer_ids" binding:"required,min=1"`
	ProposedStart   string   `json:"proposed_start" binding:"required"` // RFC3339
	DurationMinutes int      `json:"duration_minutes" binding:"required,min=5"`
	BufferBeforeMin int      `json:"buffer_before_minutes"`
	BufferAfterMin  int      `json:"buffer_after_minutes"`
}

// POST /api/scheduling-links/check-conflicts
func (a *App) CheckConflictsHandler(c *gin.Context) {
	var req checkConflictsReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	proposed, err := time.Parse(time.RFC3339, req.ProposedStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposed_start"})
		return
	}

	ctx := c.Request.Context()
	p := SlotParams{
		Duration:     time.Duration(req.DurationMinutes) * time.Minute,
		BufferBefore: time.Duration(req.BufferBeforeMin) * time.Minute,
		BufferAfter:  time.Duration(req.BufferAfterMin) * time.Minute,
		MinStart:     proposed,
	}

	conflicts, err := a.Scheduler.DetectConflicts(ctx, req.InterviewerIDs, proposed.UTC(), p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"has_conflicts": len(conflicts) > 0, "conflicts": conflicts}
	if len(conflicts) > 0 {
		alternatives, err := a.Scheduler.SuggestAlternatives(ctx, req.InterviewerIDs, proposed.UTC(), p, 5)
		if err != nil {
			a.Logger.Warn("alternative suggestion failed", "error", err)
		} else {
			resp["alternatives"] = alternatives
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/team-members/:id/availability
func (a *App) ListAvailabilityHandler(c *gin.Context) {
	windows, err := a.Store.ListRecurringAvailability(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, windows)
}

type availabilityWindowReq struct {
	DayOfWeek int    `json:"day_of_week" binding:"min=0,max=6"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
	Timezone  string `json:"timezone" binding:"required"`
	Active    *bool  `json:"active,omitempty"`
}

// PUT /api/team-members/:id/availability replaces the member's entire
// recurring schedule.
func (a *App) PutAvailabilityHandler(c *gin.Context) {
	memberID := c.Param("id")
	var payload []availabilityWindowReq
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	windows := make([]RecurringAvailability, 0, len(payload))
	for _, w := range payload {
		sh, sm, err := parseHHMM(w.StartTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_time"})
			return
		}
		eh, em, err := parseHHMM(w.EndTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_time"})
			return
		}
		if eh*60+em <= sh*60+sm {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be after start_time"})
			return
		}
		if _, err := time.LoadLocation(w.Timezone); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timezone"})
			return
		}
		active := true
		if w.Active != nil {
			active = *w.Active
		}
		windows = append(windows, RecurringAvailability{
			MemberID:  memberID,
			DayOfWeek: w.DayOfWeek,
			StartTime: w.StartTime,
			EndTime:   w.EndTime,
			Timezone:  w.Timezone,
			Active:    active,
		})
	}

	if err := a.Store.ReplaceRecurringAvailability(c.Request.Context(), memberID, windows); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, windows)
}

// GET /api/team-members/:id/exceptions?from=&to=
func (a *App) ListExceptionsHandler(c *gin.Context) {
	from, to, err := parseRange(c.DefaultQuery("from", a.Now().Format(time.RFC3339)),
		c.DefaultQuery("to", a.Now().AddDate(0, 3, 0).Format(time.RFC3339)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	exceptions, err := a.Store.ListExceptions(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, exceptions)
}

type exceptionReq struct {
	Date          string `json:"date" binding:"required"` // 2006-01-02
	IsUnavailable bool   `json:"is_unavailable"`
	StartTime     string `json:"start_time,omitempty"`
	EndTime       string `json:"end_time,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// PUT /api/team-members/:id/exceptions replaces the member's exceptions.
func (a *App) PutExceptionsHandler(c *gin.Context) {
	memberID := c.Param("id")
	var payload []exceptionReq
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	exceptions := make([]AvailabilityException, 0, len(payload))
	for _, e := range payload {
		date, err := time.Parse(dateLayout, e.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
			return
		}
		if (e.StartTime == "") != (e.EndTime == "") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_time and end_time must be set together"})
			return
		}
		exceptions = append(exceptions, AvailabilityException{
			MemberID:      memberID,
			Date:          date,
			IsUnavailable: e.IsUnavailable,
			StartTime:     e.StartTime,
			EndTime:       e.EndTime,
			Reason:        e.Reason,
		})
	}

	if err := a.Store.ReplaceExceptions(c.Request.Context(), memberID, exceptions); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, exceptions)
}

// GET /api/team-members/:id/slots?from=&to=&duration_minutes=
func (a *App) MemberSlotsHandler(c *gin.Context) {
	from, to, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	duration := 30
	if d := c.Query("duration_minutes"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 5 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration_minutes"})
			return
		}
		duration = n
	}

	p := SlotParams{
		Duration: time.Duration(duration) * time.Minute,
		MinStart: a.Now(),
	}
	slots, err := a.Scheduler.ResolveAvailability(c.Request.Context(), c.Param("id"), from, to, p)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "team member not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if slots == nil {
		slots = []TimeSlot{}
	}
	c.JSON(http.StatusOK, slots)
}

// GET /api/team-members/:id/interviews?from=&to=
func (a *App) ListMemberInterviewsHandler(c *gin.Context) {
	from, to, err := parseRange(c.DefaultQuery("from", a.Now().AddDate(0, -1, 0).Format(time.RFC3339)),
		c.DefaultQuery("to", a.Now().AddDate(0, 3, 0).Format(time.RFC3339)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	interviews, err := a.Store.ListMemberInterviews(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, interviews)
}

// DELETE /api/interviews/:id
func (a *App) CancelInterviewHandler(c *gin.Context) {
	err := a.CancelInterview(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "interview not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/calendar/auth?member_id=
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if a.Google == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Google Calendar not configured"})
		return
	}
	memberID := c.Query("member_id")
	if memberID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "member_id required"})
		return
	}
	if _, err := a.Store.GetTeamMember(c.Request.Context(), memberID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "team member not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth_url": a.Google.AuthCodeURL(memberID)})
}

// GET /oauth2callback
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if a.Google == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Google Calendar not configured"})
		return
	}
	code := c.Query("code")
	memberID := c.Query("state")
	if code == "" || memberID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and state required"})
		return
	}

	token, err := a.Google.Exchange(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to exchange authorization code"})
		return
	}
	if err := a.Store.SetCalendarToken(c.Request.Context(), memberID, token); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "team member not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "calendar connected"})
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, errors.New("from and to required (RFC3339)")
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid from")
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid to")
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, errors.New("from must be before to")
	}
	return from.UTC(), to.UTC(), nil
}

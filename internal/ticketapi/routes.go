package ticketapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ovalle/bedel/internal/models"
	"gorm.io/gorm"
)

// minDescriptionLen mirrors the conversational flow's validation so tickets
// created through the admin surface meet the same bar.
const minDescriptionLen = 10

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB) {
	v1 := router.Group("/api/v1")

	v1.GET("/health", handleHealth())

	v1.POST("/tickets", handleCreateTicket(db))
	v1.GET("/tickets", handleListTickets(db))
	v1.GET("/tickets/:ref", handleGetTicket(db))
	v1.PATCH("/tickets/:ref/status", handleUpdateTicketStatus(db))

	v1.GET("/faqs", handleQueryFAQ(db))
	v1.POST("/faqs", handleCreateFAQ(db))
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "OK",
			"message": "Bedel API operativa",
		})
	}
}

// TicketCreateRequest is the create-ticket payload.
type TicketCreateRequest struct {
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	Email       string `json:"email"`
	Description string `json:"description"`
	Category    string `json:"category"`
	StudentID   string `json:"student_id"`
	Priority    string `json:"priority"`
	Source      string `json:"source"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	Ref         string `json:"ref"`
	UserID      string `json:"user_id,omitempty"`
	UserName    string `json:"user_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Description string `json:"description"`
	Category    string `json:"category"`
	StudentID   string `json:"student_id,omitempty"`
	Priority    string `json:"priority"`
	Source      string `json:"source,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func ticketResponse(t *models.Ticket) TicketResponse {
	return TicketResponse{
		Ref:         t.Ref,
		UserID:      t.UserID,
		UserName:    t.UserName,
		Email:       t.Email,
		Description: t.Description,
		Category:    t.Category,
		StudentID:   t.StudentID,
		Priority:    t.Priority,
		Source:      t.Source,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   t.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// newTicketRef generates a public ticket reference like "BDL-1a2b3c4d".
func newTicketRef() string {
	id := uuid.New().String()
	return "BDL-" + id[:8]
}

func handleCreateTicket(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TicketCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid payload: %v", err)})
			return
		}
		req.Description = strings.TrimSpace(req.Description)
		if len([]rune(req.Description)) < minDescriptionLen {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("description must be at least %d characters", minDescriptionLen),
			})
			return
		}
		priority := req.Priority
		if priority == "" {
			priority = "media"
		}

		ticket := models.Ticket{
			Ref:         newTicketRef(),
			UserID:      req.UserID,
			UserName:    req.UserName,
			Email:       req.Email,
			Description: req.Description,
			Category:    req.Category,
			StudentID:   req.StudentID,
			Priority:    priority,
			Source:      req.Source,
			Status:      models.TicketOpen,
		}
		if err := db.Create(&ticket).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store ticket"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"ticket":  ticketResponse(&ticket),
			"message": "Ticket registrado. Un asesor se pondrá en contacto pronto.",
		})
	}
}

func handleListTickets(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.Model(&models.Ticket{}).Order("created_at DESC")
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		if category := c.Query("category"); category != "" {
			q = q.Where("category = ?", category)
		}

		var tickets []models.Ticket
		if err := q.Find(&tickets).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		out := make([]TicketResponse, len(tickets))
		for i := range tickets {
			out[i] = ticketResponse(&tickets[i])
		}
		c.JSON(http.StatusOK, gin.H{"tickets": out, "count": len(out)})
	}
}

func handleGetTicket(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ticket models.Ticket
		err := db.Where("ref = ?", c.Param("ref")).First(&ticket).Error
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ticket": ticketResponse(&ticket)})
	}
}

// validStatuses for the PATCH status endpoint.
var validStatuses = map[string]bool{
	models.TicketOpen:       true,
	models.TicketInProgress: true,
	models.TicketClosed:     true,
}

func handleUpdateTicketStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Status string `json:"status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		if !validStatuses[req.Status] {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid status %q", req.Status)})
			return
		}
		result := db.Model(&models.Ticket{}).
			Where("ref = ?", c.Param("ref")).
			Update("status", req.Status)
		if result.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ref": c.Param("ref"), "status": req.Status})
	}
}

// FAQResponse is the wire form of a FAQ match.
type FAQResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

func handleQueryFAQ(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := strings.TrimSpace(c.Query("query"))
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
			return
		}
		subject := strings.TrimSpace(c.Query("subject"))

		match, err := BestMatch(db, query, subject)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
			return
		}
		if match == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "no match"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"faq": FAQResponse{
			Question: match.Question,
			Answer:   match.Answer,
			Category: match.Category,
		}})
	}
}

// FAQCreateRequest is the create-FAQ payload.
type FAQCreateRequest struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

func handleCreateFAQ(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req FAQCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question and answer are required"})
			return
		}
		faq := models.FAQ{
			Question: req.Question,
			Answer:   req.Answer,
			Category: req.Category,
			Keywords: marshalKeywords(req.Keywords),
		}
		if err := db.Create(&faq).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store faq"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": faq.ID})
	}
}

package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/chirpy-labs/chirpy-push/internal/model"
	"github.com/chirpy-labs/chirpy-push/internal/service"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleVAPIDKey(c *fiber.Ctx) error {
	if s.svc.VAPIDPublicKey == "" {
		return c.Status(http.StatusServiceUnavailable).JSON(model.Error("push is not configured"))
	}
	return s.ok(c, http.StatusOK, fiber.Map{"publicKey": s.svc.VAPIDPublicKey})
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req service.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	reg, err := s.svc.Accounts.Register(c.UserContext(), req.Email)
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusCreated, fiber.Map{
		"userId":         reg.AccountID,
		"email":          reg.Email,
		"apiKey":         reg.APIKey,
		"vapidPublicKey": reg.VAPIDPublicKey,
	})
}

func (s *Server) handleUserInfo(c *fiber.Ctx) error {
	info, err := s.svc.Accounts.Info(c.UserContext(), credential(c))
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{"user": info})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req struct {
		APIKey string `json:"apiKey"`
	}
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	if req.APIKey == "" {
		req.APIKey = c.Get("X-API-Key")
	}
	session, err := s.svc.Auth.Login(c.UserContext(), req.APIKey)
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{
		"token":     session.Token,
		"userId":    session.AccountID,
		"email":     session.Email,
		"expiresAt": session.ExpiresAt,
	})
}

func (s *Server) handleListWebsites(c *fiber.Ctx) error {
	websites, err := s.svc.Websites.List(c.UserContext(), credential(c))
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{"websites": websites})
}

func (s *Server) handleAddWebsite(c *fiber.Ctx) error {
	var req struct {
		Domain string `json:"domain"`
	}
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	website, err := s.svc.Websites.Add(c.UserContext(), credential(c), req.Domain)
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusCreated, fiber.Map{"website": website})
}

func (s *Server) handleDeleteWebsite(c *fiber.Ctx) error {
	if err := s.svc.Websites.Delete(c.UserContext(), credential(c), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{"message": "Website deleted"})
}

func (s *Server) handleListSubscribers(c *fiber.Ctx) error {
	subs, err := s.svc.Subscribers.List(c.UserContext(), credential(c), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{"subscribers": subs, "total": len(subs)})
}

func (s *Server) handleSubscribe(c *fiber.Ctx) error {
	var req struct {
		Subscription json.RawMessage `json:"subscription"`
		Metadata     model.Metadata  `json:"metadata"`
	}
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	sub, err := s.svc.Subscribers.Register(c.UserContext(), c.Get("X-API-Key"), service.SubscribeRequest{
		Handle:   subscriptionHandle(req.Subscription),
		Metadata: req.Metadata,
		ClientIP: c.IP(),
	})
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusCreated, fiber.Map{"subscriberId": sub.ID})
}

// subscriptionHandle accepts the browser's PushSubscription either as an
// object or as a JSON-encoded string.
func subscriptionHandle(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return trimmed
}

func (s *Server) handleCreateSegment(c *fiber.Ctx) error {
	var req service.CreateSegmentRequest
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	seg, err := s.svc.Segments.Create(c.UserContext(), credential(c), req)
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusCreated, fiber.Map{"segmentId": seg.ID, "segment": seg})
}

func (s *Server) handlePreviewSegment(c *fiber.Ctx) error {
	var req struct {
		WebsiteID string       `json:"websiteId"`
		Rules     []model.Rule `json:"rules"`
	}
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	preview, err := s.svc.Segments.Preview(c.UserContext(), credential(c), req.WebsiteID, req.Rules)
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{"matching": preview.Matching, "total": preview.Total})
}

func (s *Server) handleListSegments(c *fiber.Ctx) error {
	segments, err := s.svc.Segments.List(c.UserContext(), credential(c), c.Params("websiteId"))
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{"segments": segments})
}

func (s *Server) handleDeleteSegment(c *fiber.Ctx) error {
	if err := s.svc.Segments.Delete(c.UserContext(), credential(c), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{"message": "Segment deleted"})
}

func (s *Server) handleCreateCampaign(c *fiber.Ctx) error {
	var req service.CreateCampaignRequest
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	campaign, err := s.svc.Campaigns.Create(c.UserContext(), credential(c), req)
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusCreated, fiber.Map{"campaignId": campaign.ID, "campaign": campaign})
}

func (s *Server) handleListCampaigns(c *fiber.Ctx) error {
	rows, err := s.svc.Campaigns.List(c.UserContext(), credential(c), c.Params("websiteId"))
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{"campaigns": rows})
}

func (s *Server) handleListAllCampaigns(c *fiber.Ctx) error {
	rows, err := s.svc.Campaigns.ListAll(c.UserContext(), credential(c))
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{"campaigns": rows})
}

func (s *Server) handleGetCampaign(c *fiber.Ctx) error {
	detail, err := s.svc.Campaigns.Get(c.UserContext(), credential(c), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{"campaign": detail})
}

func (s *Server) handleSendCampaign(c *fiber.Ctx) error {
	res, err := s.svc.Dispatcher.Send(c.UserContext(), credential(c), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{
		"campaignId": res.CampaignID,
		"sent":       res.Sent,
		"delivered":  res.Delivered,
		"failed":     res.Failed,
		"pruned":     res.Pruned,
		"errors":     res.Errors,
	})
}

func (s *Server) handleDeleteCampaign(c *fiber.Ctx) error {
	if err := s.svc.Campaigns.Delete(c.UserContext(), credential(c), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{"message": "Campaign deleted"})
}

func (s *Server) handleTrackClick(c *fiber.Ctx) error {
	var req struct {
		CampaignID   string `json:"campaignId"`
		SubscriberID string `json:"subscriberId"`
	}
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	if err := s.svc.Clicks.Report(c.UserContext(), req.CampaignID, req.SubscriberID); err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{})
}

func (s *Server) handleOverview(c *fiber.Ctx) error {
	ov, err := s.svc.Analytics.Overview(c.UserContext(), credential(c))
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{"overview": ov})
}

func (s *Server) handleGrowth(c *fiber.Ctx) error {
	from, err := parseDay(c.Query("from"))
	if err != nil {
		return s.fail(c, err)
	}
	to, err := parseDay(c.Query("to"))
	if err != nil {
		return s.fail(c, err)
	}
	days, err := s.svc.Analytics.Growth(c.UserContext(), credential(c), from, to)
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{"growth": days})
}

func (s *Server) handleBreakdown(c *fiber.Ctx) error {
	b, err := s.svc.Analytics.Breakdown(c.UserContext(), credential(c))
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{"breakdown": b})
}

func (s *Server) handleCampaignReport(c *fiber.Ctx) error {
	report, err := s.svc.Analytics.CampaignReport(c.UserContext(), credential(c), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{"report": report})
}

func (s *Server) handleAdminLogin(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	token, err := s.svc.Auth.AdminLogin(req.Username, req.Password)
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{"token": token})
}

func (s *Server) handleAdminSummary(c *fiber.Ctx) error {
	stats, err := s.svc.Admin.Summary(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, http.StatusOK, fiber.Map{"summary": stats, "username": c.Locals("username")})
}

// parseDay accepts YYYY-MM-DD or RFC3339. Empty means unset.
func parseDay(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, &service.Error{Kind: service.ErrValidation, Msg: "invalid date: " + value}
}

package server

import (
	"cuecard/app/service/prompt"
	"cuecard/app/service/session"
	"cuecard/app/service/settings"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

func (s *Server) parse(c *fiber.Ctx, req any) error {
	if len(c.Body()) == 0 {
		return s.validate.Struct(req)
	}

	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	return s.validate.Struct(req)
}

func (s *Server) getSession(c *fiber.Ctx) error {
	status, err := s.Engine.Status(c.UserContext())
	if err != nil {
		return err
	}

	res := sessionResponse{
		Active:   status.Active,
		Guidance: status.Guidance,
		Chat:     status.Chat,
	}
	if current, ok := s.Sessions.Current(); ok {
		res.Session = &current
	}

	return c.JSON(res)
}

func (s *Server) startSession(c *fiber.Ctx) error {
	var req startSessionRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}

	sess, err := s.Sessions.Start(c.UserContext(), req.Persona)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(sess)
}

func (s *Server) endSession(c *fiber.Ctx) error {
	sess, err := s.Sessions.End(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(sess)
}

func (s *Server) parseText(c *fiber.Ctx) (string, error) {
	var req textRequest
	if err := c.BodyParser(&req); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	req.Text = strings.TrimSpace(req.Text)
	if err := s.validate.Struct(req); err != nil {
		return "", err
	}

	if _, ok := s.Sessions.Current(); !ok {
		return "", session.ErrNoSession
	}

	return req.Text, nil
}

func (s *Server) addFragment(c *fiber.Ctx) error {
	text, err := s.parseText(c)
	if err != nil {
		return err
	}

	if !s.Queue.AddFragment(text) {
		return errQueueFull
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) addMessage(c *fiber.Ctx) error {
	text, err := s.parseText(c)
	if err != nil {
		return err
	}

	if !s.Queue.AddMessage(text) {
		return errQueueFull
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) resendMessage(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errBadID
	}

	if err = s.Engine.Resend(c.UserContext(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) getMessages(c *fiber.Ctx) error {
	return c.JSON(s.Surface.Snapshot().Messages)
}

func (s *Server) getGuidance(c *fiber.Ctx) error {
	snap := s.Surface.Snapshot()

	return c.JSON(guidanceResponse{
		Guidance:  snap.Guidance,
		LastError: string(snap.LastError),
		Typing:    snap.Typing,
	})
}

func (s *Server) getSettings(c *fiber.Ctx) error {
	values, err := s.Settings.All()
	if err != nil {
		return err
	}

	usage, err := s.Settings.Usage()
	if err != nil {
		return err
	}

	res := settingsResponse{
		HasAPIKey:     values[settings.KeyGeminiAPIKey] != "",
		APIKey:        maskKey(values[settings.KeyGeminiAPIKey]),
		CustomPrompts: make(map[string]string),
		Usage:         usage,
	}
	for _, persona := range prompt.Personas() {
		if text := values[settings.CustomPromptKey(persona.ID)]; text != "" {
			res.CustomPrompts[persona.ID] = text
		}
	}

	return c.JSON(res)
}

func (s *Server) updateSettings(c *fiber.Ctx) error {
	var req updateSettingsRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}

	updates := make(map[string]string)

	if req.GeminiAPIKey != nil {
		updates[settings.KeyGeminiAPIKey] = strings.TrimSpace(*req.GeminiAPIKey)
	}
	for personaID, text := range req.CustomPrompts {
		if _, ok := prompt.Lookup(personaID); !ok {
			return oops.With("persona", personaID).Wrap(session.ErrUnknownPersona)
		}
		updates[settings.CustomPromptKey(personaID)] = strings.TrimSpace(text)
	}

	if len(updates) > 0 {
		if err := s.Settings.SetMany(updates); err != nil {
			return err
		}
	}

	return s.getSettings(c)
}

func (s *Server) getPersonas(c *fiber.Ctx) error {
	return c.JSON(prompt.Personas())
}

// maskKey keeps the last four characters of a key.
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}

	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

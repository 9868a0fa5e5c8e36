// Package adkexec runs a single ADK agent turn and collects its output.
package adkexec

import (
	"context"
	"fmt"

	"google.golang.org/adk/agent"
	adkrunner "google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

// Input defines one agent invocation: the agent, the app and user identity
// the session is filed under, and the user message to send.
type Input struct {
	AppName string
	UserID  string
	Agent   agent.Agent
	Message string
	OnEvent func(*session.Event)
}

// Invoke runs the agent once and returns the text of its final response.
func Invoke(ctx context.Context, input Input) (string, error) {
	if input.Agent == nil {
		return "", fmt.Errorf("agent is required")
	}

	appName := input.AppName
	if appName == "" {
		appName = "replan"
	}
	userID := input.UserID
	if userID == "" {
		userID = "replan-user"
	}

	sessionService := session.InMemoryService()
	r, err := adkrunner.New(adkrunner.Config{
		AppName:        appName,
		Agent:          input.Agent,
		SessionService: sessionService,
	})
	if err != nil {
		return "", fmt.Errorf("create ADK runner: %w", err)
	}

	created, err := sessionService.Create(ctx, &session.CreateRequest{
		AppName: appName,
		UserID:  userID,
	})
	if err != nil {
		return "", fmt.Errorf("create ADK session: %w", err)
	}

	content := genai.NewContentFromText(input.Message, genai.RoleUser)
	var lastText string
	for ev, runErr := range r.Run(ctx, userID, created.Session.ID(), content, agent.RunConfig{}) {
		if runErr != nil {
			return "", runErr
		}
		if ev == nil {
			continue
		}
		if input.OnEvent != nil {
			input.OnEvent(ev)
		}
		if ev.Content != nil && len(ev.Content.Parts) > 0 {
			lastText = ev.Content.Parts[0].Text
		}
	}
	return lastText, nil
}

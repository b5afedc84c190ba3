// Command llmtest exercises the decision oracle against the live Gemini API.
// It is a manual smoke test for prompt changes, not part of the deployment.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/flowline-ai/flowline/internal/flow"
	"github.com/flowline-ai/flowline/internal/llm"
	"github.com/flowline-ai/flowline/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal("GEMINI_API_KEY is required")
	}
	modelID := os.Getenv("GEMINI_MODEL_ID")
	if modelID == "" {
		modelID = "gemini-2.5-flash"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := logging.New("debug")
	client, err := llm.NewGeminiClient(ctx, apiKey, modelID)
	if err != nil {
		log.Fatalf("gemini client: %v", err)
	}
	oracle := llm.NewOracle(client, logger)

	history := []flow.HistoryEntry{
		{Role: flow.RoleAssistant, Content: "Which service would you like to book?"},
		{Role: flow.RoleUser, Content: "The deep tissue massage please"},
		{Role: flow.RoleAssistant, Content: "Great. Here are the next available times."},
	}

	fmt.Printf("model: %s\n\n", modelID)

	fmt.Println("[1] Decide: user changes their mind mid-flow")
	decision, err := oracle.Decide(ctx, flow.DecisionInput{
		Message:     "actually can we do a different day entirely",
		CurrentStep: "select_slot",
		GoalType:    flow.GoalServiceBooking,
		History:     history,
	})
	if err != nil {
		log.Fatalf("decide: %v", err)
	}
	fmt.Printf("    action=%s target=%s confidence=%.2f\n    reasoning: %s\n\n",
		decision.Action, decision.TargetStep, decision.Confidence, decision.Reasoning)

	fmt.Println("[2] Answer: free-form question")
	answer, err := oracle.Answer(ctx, "Do you take walk-ins on weekends?", history)
	if err != nil {
		log.Fatalf("answer: %v", err)
	}
	fmt.Printf("    %s\n\n", answer)

	fmt.Println("[3] Translate: reply localization")
	translated, err := oracle.Translate(ctx, "You're all set! See you on Tuesday at 10am.", "es")
	if err != nil {
		log.Fatalf("translate: %v", err)
	}
	fmt.Printf("    %s\n", translated)
}

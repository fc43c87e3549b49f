package token_management

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/meysamhadeli/gitshape/constants/lipgloss"
	"github.com/meysamhadeli/gitshape/embed_data"
	"github.com/meysamhadeli/gitshape/token_management/contracts"
)

// TokenManager implementation
type tokenManager struct {
	usedToken       int
	usedInputToken  int
	usedOutputToken int
}

type details struct {
	MaxTokens                  int     `json:"max_tokens"`
	MaxInputTokens             int     `json:"max_input_tokens"`
	MaxOutputTokens            int     `json:"max_output_tokens"`
	InputCostPerMillionTokens  float64 `json:"input_cost_per_million_tokens,omitempty"`
	OutputCostPerMillionTokens float64 `json:"output_cost_per_million_tokens,omitempty"`
	Mode                       string  `json:"mode"`
}

type Models struct {
	ModelDetails map[string]details `json:"models"`
}

var (
	modelsOnce sync.Once
	modelTable Models
	modelErr   error
)

// NewTokenManager creates a new token manager
func NewTokenManager() contracts.ITokenManagement {
	return &tokenManager{}
}

// UsedTokens accumulates the token count for the session.
func (tm *tokenManager) UsedTokens(inputToken int, outputToken int) {
	tm.usedInputToken += inputToken
	tm.usedOutputToken += outputToken
	tm.usedToken += inputToken + outputToken
}

// DisplayTokens renders the accumulated estimate and its cost as a box.
func (tm *tokenManager) DisplayTokens(modelName string) string {
	cost := tm.CalculateCost(modelName, tm.usedInputToken, tm.usedOutputToken)

	tokenInfo := fmt.Sprintf("Est Tokens: %d - Cost: %.6f $ - Model: %s", tm.usedToken, cost, modelName)
	if usage, err := tm.ContextUsage(modelName, tm.usedInputToken); err == nil {
		tokenInfo += fmt.Sprintf(" - Context: %.1f%%", usage)
	}
	return lipgloss.BoxStyle.Render(tokenInfo)
}

func (tm *tokenManager) GetCurrentTokenUsage() (total int, input int, output int) {
	return tm.usedToken, tm.usedInputToken, tm.usedOutputToken
}

func (tm *tokenManager) ClearToken() {
	tm.usedToken = 0
	tm.usedInputToken = 0
	tm.usedOutputToken = 0
}

// CalculateCost prices the tokens for modelName; unknown models cost 0.
func (tm *tokenManager) CalculateCost(modelName string, inputToken int, outputToken int) float64 {
	modelDetails, err := getModelDetails(modelName)
	if err != nil {
		return 0
	}
	inputCost := float64(inputToken) * modelDetails.InputCostPerMillionTokens / 1000000.0
	outputCost := float64(outputToken) * modelDetails.OutputCostPerMillionTokens / 1000000.0
	return inputCost + outputCost
}

// ContextUsage returns the share of the model's input window, in percent.
func (tm *tokenManager) ContextUsage(modelName string, inputToken int) (float64, error) {
	modelDetails, err := getModelDetails(modelName)
	if err != nil {
		return 0, err
	}
	if modelDetails.MaxInputTokens <= 0 {
		return 0, fmt.Errorf("model '%s' has no input window", modelName)
	}
	return float64(inputToken) / float64(modelDetails.MaxInputTokens) * 100, nil
}

func getModelDetails(modelName string) (details, error) {
	modelsOnce.Do(func() {
		modelTable = Models{ModelDetails: make(map[string]details)}
		if err := json.Unmarshal(embed_data.ModelDetails, &modelTable); err != nil {
			modelErr = fmt.Errorf("error unmarshaling model details: %w", err)
		}
	})
	if modelErr != nil {
		return details{}, modelErr
	}

	model, exists := modelTable.ModelDetails[strings.ToLower(modelName)]
	if !exists {
		return details{}, fmt.Errorf("model details price with name '%s' not found", modelName)
	}
	return model, nil
}

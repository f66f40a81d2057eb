package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/castlelight/gambit/internal/models"
)

// OracleClient is an Engine backed by an external rules service over HTTP.
// The service owns every rule of the game; this client only translates.
type OracleClient struct {
	baseURL string
	client  *http.Client
}

// NewOracleClient targets the rules service at baseURL.
func NewOracleClient(baseURL string) *OracleClient {
	return &OracleClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type legalMovesRequest struct {
	Position string `json:"position"`
}

type legalMovesResponse struct {
	Moves []string `json:"moves"`
}

type applyRequest struct {
	Position string `json:"position"`
	Move     string `json:"move"`
}

type applyResponse struct {
	Legal       bool   `json:"legal"`
	Position    string `json:"position"`
	Turn        string `json:"turn"`
	Termination string `json:"termination,omitempty"`
	Winner      string `json:"winner,omitempty"`
	Error       string `json:"error,omitempty"`
}

// LegalMoves implements Engine.
func (c *OracleClient) LegalMoves(pos Position) ([]Move, error) {
	var resp legalMovesResponse
	if err := c.post("/v1/legal-moves", legalMovesRequest{Position: string(pos)}, &resp); err != nil {
		return nil, err
	}

	moves := make([]Move, len(resp.Moves))
	for i, m := range resp.Moves {
		moves[i] = Move(m)
	}
	return moves, nil
}

// Apply implements Engine.
func (c *OracleClient) Apply(pos Position, mv Move) (*Result, error) {
	var resp applyResponse
	if err := c.post("/v1/apply", applyRequest{Position: string(pos), Move: string(mv)}, &resp); err != nil {
		return nil, err
	}
	if !resp.Legal {
		if resp.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrIllegalMove, resp.Error)
		}
		return nil, ErrIllegalMove
	}

	result := &Result{
		Position: Position(resp.Position),
		Turn:     models.Side(resp.Turn),
	}
	if resp.Termination != "" {
		outcome := &TerminalOutcome{Termination: Termination(resp.Termination)}
		if resp.Winner != "" {
			winner := models.Side(resp.Winner)
			outcome.Winner = &winner
		}
		result.Outcome = outcome
	}
	return result, nil
}

func (c *OracleClient) post(endpoint string, reqBody, respBody any) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call rules service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("rules service returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

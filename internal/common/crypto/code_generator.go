package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/psytech/auth-backend/internal/common/constants"
)

type CodeGenerator interface {
	NewCode() (string, error)
}

// RandomCodeGenerator draws a 6-digit code uniformly from [100000, 999999].
type RandomCodeGenerator struct{}

func NewRandomCodeGenerator() *RandomCodeGenerator {
	return &RandomCodeGenerator{}
}

func (g *RandomCodeGenerator) NewCode() (string, error) {
	span := big.NewInt(constants.OTPMaxValue - constants.OTPMinValue + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+constants.OTPMinValue), nil
}

// FixedCodeGenerator always returns the same code. Non-production use only.
type FixedCodeGenerator struct {
	code string
}

func NewFixedCodeGenerator(code string) *FixedCodeGenerator {
	return &FixedCodeGenerator{code: code}
}

func (g *FixedCodeGenerator) NewCode() (string, error) {
	return g.code, nil
}

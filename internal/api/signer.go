package api

import (
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/commitcore/internal/digest"
	"github.com/jmerrifield20/commitcore/internal/identity"
)

// SignerHandler publishes the server's signing identity and verifies
// signatures on behalf of clients.
type SignerHandler struct {
	pub identity.PublicKey
}

// NewSignerHandler creates a SignerHandler for the server public key.
func NewSignerHandler(pub identity.PublicKey) *SignerHandler {
	return &SignerHandler{pub: pub}
}

// Register mounts the signer routes on the given router group.
func (h *SignerHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/identity", h.Identity)
	rg.POST("/verify", h.Verify)
}

// IdentityResponse is the body of GET /identity.
type IdentityResponse struct {
	PublicKey identity.PublicKey `json:"public_key"`
	Curve     string             `json:"curve"`
}

// Identity handles GET /identity. It returns the server public key.
func (h *SignerHandler) Identity(c *gin.Context) {
	c.JSON(http.StatusOK, IdentityResponse{PublicKey: h.pub, Curve: "secp256k1"})
}

type verifyRequest struct {
	Digest    string `json:"digest"     binding:"required"`
	Signature string `json:"signature"  binding:"required"`
	PublicKey string `json:"public_key" binding:"required"`
}

// Verify handles POST /verify. A malformed digest is a client error; a
// malformed signature or key simply does not verify.
func (h *SignerHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := digest.Parse(req.Digest)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "digest must be 64 hex characters"})
		return
	}

	sig, sigErr := hex.DecodeString(req.Signature)
	pub, pubErr := hex.DecodeString(req.PublicKey)
	valid := sigErr == nil && pubErr == nil && identity.VerifyEncoded(sig, d.Bytes(), pub)

	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/commitcore/internal/commitlog"
	"github.com/jmerrifield20/commitcore/internal/identity"
	"github.com/jmerrifield20/commitcore/internal/merkle"
	"go.uber.org/zap"
)

// CommitHandler seals submitted batches with the server key and appends
// them to the commitment log.
type CommitHandler struct {
	key     *identity.PrivateKey
	log     commitlog.Log
	tokens  *identity.TokenIssuer // nil = open mode, no auth on writes
	workers int
	logger  *zap.Logger
}

// NewCommitHandler creates a CommitHandler. tokens may be nil to accept
// unauthenticated commitments.
func NewCommitHandler(key *identity.PrivateKey, log commitlog.Log, tokens *identity.TokenIssuer, workers int, logger *zap.Logger) *CommitHandler {
	return &CommitHandler{key: key, log: log, tokens: tokens, workers: workers, logger: logger}
}

// requireToken returns the RequireToken middleware when auth is configured,
// or a no-op middleware in open mode.
func (h *CommitHandler) requireToken() gin.HandlerFunc {
	if h.tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return identity.RequireToken(h.tokens, identity.ScopeCommit)
}

// Register mounts the commitment routes on the given router group.
func (h *CommitHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/commitments", h.requireToken(), h.Commit)
}

// Commit handles POST /commitments. It seals a batch and appends it.
func (h *CommitHandler) Commit(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	txs, err := req.decode()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := commitlog.Seal(c.Request.Context(), h.log, h.key, txs, merkle.WithWorkers(h.workers))
	if errors.Is(err, merkle.ErrEmptyCommitment) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "transactions must not be empty"})
		return
	}
	if err != nil {
		h.logger.Error("seal commitment", zap.String("request_id", RequestIDFromCtx(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to append commitment"})
		return
	}

	RecordCommit(entry.TxCount)
	fields := []zap.Field{
		zap.Int("index", entry.Index),
		zap.String("root", entry.Root),
		zap.Int("tx_count", entry.TxCount),
	}
	if claims := identity.ClaimsFromCtx(c); claims != nil {
		fields = append(fields, zap.String("subject", claims.Subject))
	}
	h.logger.Info("commitment appended", fields...)

	c.JSON(http.StatusCreated, entry)
}

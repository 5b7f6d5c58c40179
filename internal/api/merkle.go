package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/commitcore/internal/digest"
	"github.com/jmerrifield20/commitcore/internal/merkle"
)

// MerkleHandler computes roots and inclusion proofs over submitted batches.
type MerkleHandler struct {
	workers int
}

// NewMerkleHandler creates a MerkleHandler. workers bounds the goroutines
// used to hash large batches.
func NewMerkleHandler(workers int) *MerkleHandler {
	return &MerkleHandler{workers: workers}
}

// Register mounts the merkle routes on the given router group.
func (h *MerkleHandler) Register(rg *gin.RouterGroup) {
	m := rg.Group("/merkle")
	{
		m.POST("/root", h.Root)
		m.POST("/proof", h.Proof)
		m.POST("/verify", h.VerifyProof)
	}
}

// RootResponse is the body of POST /merkle/root.
type RootResponse struct {
	Root   merkle.Root `json:"root"`
	CID    string      `json:"cid"`
	Leaves int         `json:"leaves"`
	Depth  int         `json:"depth"`
}

// Root handles POST /merkle/root.
func (h *MerkleHandler) Root(c *gin.Context) {
	tree, ok := h.build(c)
	if !ok {
		return
	}
	root := tree.Root()
	c.JSON(http.StatusOK, RootResponse{
		Root:   root,
		CID:    root.CID(),
		Leaves: len(tree.Leaves()),
		Depth:  tree.Depth(),
	})
}

type proofRequest struct {
	batchRequest
	Index int `json:"index"`
}

// ProofResponse is the body of POST /merkle/proof.
type ProofResponse struct {
	Root  merkle.Root  `json:"root"`
	Leaf  digest.Hash  `json:"leaf"`
	Proof merkle.Proof `json:"proof"`
}

// Proof handles POST /merkle/proof. It returns the inclusion proof for one leaf.
func (h *MerkleHandler) Proof(c *gin.Context) {
	var req proofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tree, ok := h.buildFrom(c, req.batchRequest)
	if !ok {
		return
	}

	proof, err := tree.Proof(req.Index)
	if errors.Is(err, merkle.ErrIndexOutOfRange) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build proof"})
		return
	}
	c.JSON(http.StatusOK, ProofResponse{
		Root:  tree.Root(),
		Leaf:  tree.Leaves()[req.Index],
		Proof: proof,
	})
}

type verifyProofRequest struct {
	Root  merkle.Root  `json:"root"`
	Leaf  digest.Hash  `json:"leaf"`
	Proof merkle.Proof `json:"proof"`
}

// VerifyProof handles POST /merkle/verify.
func (h *MerkleHandler) VerifyProof(c *gin.Context) {
	var req verifyProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": merkle.VerifyProof(req.Root, req.Leaf, req.Proof)})
}

func (h *MerkleHandler) build(c *gin.Context) (*merkle.Tree, bool) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return h.buildFrom(c, req)
}

func (h *MerkleHandler) buildFrom(c *gin.Context, req batchRequest) (*merkle.Tree, bool) {
	txs, err := req.decode()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	tree, err := merkle.Build(txs, merkle.WithWorkers(h.workers))
	if errors.Is(err, merkle.ErrEmptyCommitment) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "transactions must not be empty"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build tree"})
		return nil, false
	}
	return tree, true
}

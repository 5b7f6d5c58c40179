// Package client is the commitcore Go SDK.
//
// It talks to a commitd server over its /api/v1 HTTP surface: reading the
// server identity, computing Merkle roots, appending commitments and
// auditing the commitment log.
//
// # Read-only use
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	id, err := c.Identity(ctx)
//	root, err := c.MerkleRoot(ctx, [][]byte{tx1, tx2})
//
// # Committing batches
//
// Writes require a bearer token carrying the commit:write scope when the
// server has auth enabled:
//
//	c, _ := client.New(baseURL, client.WithBearerToken(token))
//	entry, err := c.Commit(ctx, [][]byte{tx1, tx2, tx3})
//
// Entries returned by Commit and Entry can be checked locally with
// Entry.VerifySignature, without trusting the server's own verification.
//
// # Auditing
//
//	ok, reason, err := c.VerifyLedger(ctx)
package client

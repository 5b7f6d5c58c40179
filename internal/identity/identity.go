// Package identity implements the commitcore signing identity layer.
//
// It provides:
//   - PrivateKey, PublicKey, Signature: secp256k1 ECDSA with RFC 6979 nonces
//   - KeyStore: named keys persisted on disk, optionally passphrase-sealed
//   - TokenIssuer: HS256 bearer tokens guarding commitment writes
//   - RequireToken: Gin middleware enforcing a token scope
package identity

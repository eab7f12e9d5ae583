// Package cryptosuite implements the single fixed cipher suite the relay
// protocol uses: 2048-bit MODP Diffie-Hellman key agreement, RSA-2048
// signatures, AES-256/GCM, and SHA-256 HMAC/KDF. There is no negotiation,
// so unlike a general crypto library this package exposes only the
// operations the session state machine needs, built directly on the
// standard library's crypto/aes, crypto/cipher, and crypto/hmac rather
// than reaching for a higher-level crypto framework.
package cryptosuite

import (
	"crypto/rand"
	"encoding/asn1"
	"math/big"

	"github.com/gravitational/trace"
)

// dhOID is the dhKeyAgreement OID (1.2.840.113549.1.3.1), used so DH public
// values round-trip through an X.509 SubjectPublicKeyInfo envelope.
var dhOID = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 3, 1}

// group14Hex is the RFC 3526 2048-bit MODP group 14 prime.
const group14Hex = "" +
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D" +
	"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F" +
	"83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
	"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
	"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9" +
	"DE2BCBF6955817183995497CEA956AE515D2261898FA0510" +
	"15728E5A8AACAA68FFFFFFFFFFFFFFFF"

// Group holds the fixed DH parameters. There is exactly one instance,
// P2048: the protocol does not support pluggable group/cipher negotiation.
type Group struct {
	P *big.Int
	G *big.Int
}

// P2048 is the fixed Diffie-Hellman group every session uses.
var P2048 = mustGroup()

func mustGroup() *Group {
	p, ok := new(big.Int).SetString(group14Hex, 16)
	if !ok {
		panic("cryptosuite: invalid embedded DH prime")
	}
	return &Group{P: p, G: big.NewInt(2)}
}

// GeneratePrivate returns a fresh random exponent in [2, P-2].
func (g *Group) GeneratePrivate() (*big.Int, error) {
	max := new(big.Int).Sub(g.P, big.NewInt(3))
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return n.Add(n, big.NewInt(2)), nil
}

// PublicValue computes g^priv mod p.
func (g *Group) PublicValue(priv *big.Int) *big.Int {
	return new(big.Int).Exp(g.G, priv, g.P)
}

// SharedSecret computes peerPublic^priv mod p.
func (g *Group) SharedSecret(priv, peerPublic *big.Int) (*big.Int, error) {
	if peerPublic.Cmp(big.NewInt(1)) <= 0 || peerPublic.Cmp(g.P) >= 0 {
		return nil, trace.BadParameter("dh: peer public value out of range")
	}
	return new(big.Int).Exp(peerPublic, priv, g.P), nil
}

type dhParameters struct {
	P *big.Int
	G *big.Int
}

type subjectPublicKeyInfo struct {
	Algorithm        pkixAlgorithmIdentifier
	SubjectPublicKey asn1.BitString
}

type pkixAlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

// EncodePublicValue wraps a DH public value y in an X.509
// SubjectPublicKeyInfo envelope carrying the group's (p, g) as algorithm
// parameters.
func (g *Group) EncodePublicValue(y *big.Int) ([]byte, error) {
	params, err := asn1.Marshal(dhParameters{P: g.P, G: g.G})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	yBytes, err := asn1.Marshal(y)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	spki := subjectPublicKeyInfo{
		Algorithm: pkixAlgorithmIdentifier{
			Algorithm:  dhOID,
			Parameters: asn1.RawValue{FullBytes: params},
		},
		SubjectPublicKey: asn1.BitString{Bytes: yBytes, BitLength: len(yBytes) * 8},
	}
	der, err := asn1.Marshal(spki)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return der, nil
}

// DecodePublicValue is the inverse of EncodePublicValue; it ignores the
// embedded parameters and trusts the fixed P2048 group, since the protocol
// never negotiates alternate groups.
func (g *Group) DecodePublicValue(der []byte) (*big.Int, error) {
	var spki subjectPublicKeyInfo
	if _, err := asn1.Unmarshal(der, &spki); err != nil {
		return nil, trace.BadParameter("dh: invalid public value encoding: %v", err)
	}
	y := new(big.Int)
	if _, err := asn1.Unmarshal(spki.SubjectPublicKey.Bytes, y); err != nil {
		return nil, trace.BadParameter("dh: invalid public value integer: %v", err)
	}
	return y, nil
}

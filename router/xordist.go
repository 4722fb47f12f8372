package router

import (
	"bytes"
	"sort"

	"github.com/hyperborea-net/hyperborea/identity"
)

// xorDistance computes the big-endian XOR distance between two public
// keys, used to order servers by Kademlia-style closeness to a target
// during hinting and traversal (§4.5, §4.8).
func xorDistance(a, b identity.PublicKey) [identity.PublicKeySize]byte {
	var d [identity.PublicKeySize]byte
	for i := range a {
		d[i] = a[i] ^ b[i]
	}
	return d
}

// sortByXORDistance orders servers by ascending XOR distance from target,
// breaking ties by lexicographically smaller public key so the ordering
// is deterministic across servers holding the same candidate set.
func sortByXORDistance(servers []Server, target identity.PublicKey) {
	sort.Slice(servers, func(i, j int) bool {
		di := xorDistance(servers[i].PublicKey, target)
		dj := xorDistance(servers[j].PublicKey, target)
		cmp := bytes.Compare(di[:], dj[:])
		if cmp != 0 {
			return cmp < 0
		}
		return bytes.Compare(servers[i].PublicKey[:], servers[j].PublicKey[:]) < 0
	})
}

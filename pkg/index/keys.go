package index

import (
	"github.com/redisun/ctx/pkg/graph"
	"github.com/redisun/ctx/pkg/object"
)

// Direction discriminates the two halves of the Adjacency table.
type Direction uint8

const (
	Fwd Direction = iota + 1
	Bwd
)

func (d Direction) byte() byte {
	if d == Bwd {
		return 'B'
	}
	return 'F'
}

const (
	prefixPath      = "path:"
	prefixName      = "name:"
	prefixStableKey = "stablekey:"
	prefixSnapshot  = "snap:"
	prefixAdjacency = "adj:"
	prefixEdgeBatch = "ebc:"
	keySccView      = "sccview"
)

func pathKey(path string) []byte {
	return []byte(prefixPath + path)
}

func nameKey(namespace, name string) []byte {
	return []byte(prefixName + namespace + "\x00" + name)
}

func stableKeyKey(key string) []byte {
	return []byte(prefixStableKey + key)
}

func snapshotKey(commitID object.ID) []byte {
	return []byte(prefixSnapshot + string(commitID))
}

func adjacencyKey(dir Direction, node graph.NodeId, label graph.Label) []byte {
	k := make([]byte, 0, len(prefixAdjacency)+1+1+len(node.Key)+1+1)
	k = append(k, prefixAdjacency...)
	k = append(k, dir.byte(), ':')
	k = append(k, byte(node.Kind), ':')
	k = append(k, node.Key...)
	k = append(k, ':', byte(label))
	return k
}

func edgeBatchOfCommitKey(edgeBatchID object.ID) []byte {
	return []byte(prefixEdgeBatch + string(edgeBatchID))
}

package iforest

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"

	"github.com/hed1ad/wqguard/pkg/detectors"
)

const (
	artifactMagic   = "wqguard/iforest"
	artifactVersion = 1
)

// artifact is the on-disk form of a trained forest. Trees are flattened so
// gob only sees exported fields.
type artifact struct {
	Magic         string
	Version       int
	NFeatures     int
	NTrees        int
	SampleSize    int
	Contamination float64
	Threshold     float64
	AvgPathLength float64
	Trees         [][]flatNode
}

// flatNode is a tree node addressed by index; Left/Right are -1 on leaves.
type flatNode struct {
	Feature int
	Split   float64
	Left    int32
	Right   int32
	Size    int
}

// Save serializes the trained model.
func (f *IsolationForest) Save() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, detectors.ErrNotTrained
	}

	a := artifact{
		Magic:         artifactMagic,
		Version:       artifactVersion,
		NFeatures:     f.nFeatures,
		NTrees:        f.nTrees,
		SampleSize:    f.sampleSize,
		Contamination: f.contamination,
		Threshold:     f.threshold,
		AvgPathLength: f.avgPathLength,
		Trees:         make([][]flatNode, len(f.trees)),
	}
	for i, t := range f.trees {
		a.Trees[i] = flatten(t.root, nil)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&a); err != nil {
		return nil, fmt.Errorf("encode forest: %w", err)
	}
	return buf.Bytes(), nil
}

// Load deserializes a trained model.
func (f *IsolationForest) Load(data []byte) error {
	var a artifact
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&a); err != nil {
		return fmt.Errorf("decode forest: %w", err)
	}
	if a.Magic != artifactMagic {
		return errors.New("not an isolation forest artifact")
	}
	if a.Version != artifactVersion {
		return fmt.Errorf("unsupported artifact version %d", a.Version)
	}
	if a.NFeatures <= 0 || len(a.Trees) == 0 {
		return errors.New("artifact holds no trained trees")
	}

	trees := make([]*iTree, len(a.Trees))
	for i, nodes := range a.Trees {
		root, err := unflatten(nodes, a.NFeatures)
		if err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
		trees[i] = &iTree{root: root}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nTrees = a.NTrees
	f.sampleSize = a.SampleSize
	f.contamination = a.Contamination
	f.threshold = a.Threshold
	f.avgPathLength = a.AvgPathLength
	f.nFeatures = a.NFeatures
	f.trees = trees
	f.maxDepth = int(math.Ceil(math.Log2(float64(f.sampleSize))))
	f.trained = true

	return nil
}

// flatten appends n and its subtree in pre-order and returns the slice.
func flatten(n *node, out []flatNode) []flatNode {
	idx := len(out)
	out = append(out, flatNode{
		Feature: n.splitFeature,
		Split:   n.splitValue,
		Left:    -1,
		Right:   -1,
		Size:    n.size,
	})
	if n.left == nil && n.right == nil {
		return out
	}
	out[idx].Left = int32(len(out))
	out = flatten(n.left, out)
	out[idx].Right = int32(len(out))
	return flatten(n.right, out)
}

func unflatten(nodes []flatNode, nFeatures int) (*node, error) {
	if len(nodes) == 0 {
		return nil, errors.New("empty tree")
	}
	built := make([]*node, len(nodes))
	// Children always follow their parent, so walk backwards.
	for i := len(nodes) - 1; i >= 0; i-- {
		fn := nodes[i]
		n := &node{splitFeature: fn.Feature, splitValue: fn.Split, size: fn.Size}
		if fn.Left >= 0 || fn.Right >= 0 {
			l, r := int(fn.Left), int(fn.Right)
			if l <= i || r <= i || l >= len(nodes) || r >= len(nodes) {
				return nil, fmt.Errorf("node %d has invalid children", i)
			}
			if fn.Feature < 0 || fn.Feature >= nFeatures {
				return nil, fmt.Errorf("node %d splits on feature %d of %d", i, fn.Feature, nFeatures)
			}
			n.left, n.right = built[l], built[r]
		}
		built[i] = n
	}
	return built[0], nil
}

package model

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/rushteam/movierec/core"
)

// 持久化格式：
//
//	envelope (gob) = { Magic, Version, Checksum, Payload }
//	Payload        = gzip(gob(SVDState))
//	Checksum       = hex(sha256(gob(SVDState)))
//
// Magic 与 Version 用于识别与拒绝不兼容的数据；Checksum 用于发现损坏。
const (
	FormatMagic   = "movierec/svd"
	FormatVersion = 1
)

// SVDState 是 SVD 的可序列化状态，足以精确重建模型的全部参数。
type SVDState struct {
	NFactors   int
	RatingMin  float64
	RatingMax  float64
	GlobalBias float64
	NumRatings int

	Users []string
	Items []string

	UserBias []float64
	ItemBias []float64

	// 行优先，长度分别为 len(Users)*NFactors 与 len(Items)*NFactors
	UserFactors []float64
	ItemFactors []float64
}

type envelope struct {
	Magic    string
	Version  int
	Checksum string
	Payload  []byte
}

// State 返回模型状态的深拷贝。
func (m *SVD) State() SVDState {
	return SVDState{
		NFactors:    m.nFactors,
		RatingMin:   m.scale.Min,
		RatingMax:   m.scale.Max,
		GlobalBias:  m.globalBias,
		NumRatings:  m.numRatings,
		Users:       append([]string(nil), m.users...),
		Items:       append([]string(nil), m.items...),
		UserBias:    append([]float64(nil), m.userBias...),
		ItemBias:    append([]float64(nil), m.itemBias...),
		UserFactors: append([]float64(nil), m.userFactors...),
		ItemFactors: append([]float64(nil), m.itemFactors...),
	}
}

// FromState 根据状态重建模型，并校验各表长度与数值是否一致。
func FromState(st SVDState) (*SVD, error) {
	if err := st.validate(); err != nil {
		return nil, err
	}
	m := &SVD{
		nFactors:    st.NFactors,
		scale:       RatingScale{Min: st.RatingMin, Max: st.RatingMax},
		globalBias:  st.GlobalBias,
		numRatings:  st.NumRatings,
		users:       append([]string(nil), st.Users...),
		items:       append([]string(nil), st.Items...),
		userIndex:   make(map[string]int, len(st.Users)),
		itemIndex:   make(map[string]int, len(st.Items)),
		userBias:    append([]float64(nil), st.UserBias...),
		itemBias:    append([]float64(nil), st.ItemBias...),
		userFactors: append([]float64(nil), st.UserFactors...),
		itemFactors: append([]float64(nil), st.ItemFactors...),
	}
	for u, id := range m.users {
		if _, dup := m.userIndex[id]; dup {
			return nil, deserializationError(fmt.Sprintf("duplicate user id %q", id), nil)
		}
		m.userIndex[id] = u
	}
	for i, id := range m.items {
		if _, dup := m.itemIndex[id]; dup {
			return nil, deserializationError(fmt.Sprintf("duplicate item id %q", id), nil)
		}
		m.itemIndex[id] = i
	}
	return m, nil
}

func (st SVDState) validate() error {
	switch {
	case st.NFactors <= 0:
		return deserializationError(fmt.Sprintf("n_factors must be > 0, got %d", st.NFactors), nil)
	case !finite(st.RatingMin) || !finite(st.RatingMax) || st.RatingMin >= st.RatingMax:
		return deserializationError(fmt.Sprintf("bad rating scale (%v, %v)", st.RatingMin, st.RatingMax), nil)
	case !finite(st.GlobalBias):
		return deserializationError("global bias is not finite", nil)
	case len(st.UserBias) != len(st.Users):
		return deserializationError(fmt.Sprintf("user bias table has %d entries for %d users", len(st.UserBias), len(st.Users)), nil)
	case len(st.ItemBias) != len(st.Items):
		return deserializationError(fmt.Sprintf("item bias table has %d entries for %d items", len(st.ItemBias), len(st.Items)), nil)
	case len(st.UserFactors) != len(st.Users)*st.NFactors:
		return deserializationError(fmt.Sprintf("user factor table has %d values, want %d", len(st.UserFactors), len(st.Users)*st.NFactors), nil)
	case len(st.ItemFactors) != len(st.Items)*st.NFactors:
		return deserializationError(fmt.Sprintf("item factor table has %d values, want %d", len(st.ItemFactors), len(st.Items)*st.NFactors), nil)
	}
	for _, table := range [][]float64{st.UserBias, st.ItemBias, st.UserFactors, st.ItemFactors} {
		for _, v := range table {
			if !finite(v) {
				return deserializationError("parameter table contains non-finite value", nil)
			}
		}
	}
	return nil
}

// Serialize 把模型编码为自描述的字节流。
func Serialize(m *SVD) ([]byte, error) {
	if m == nil {
		return nil, errors.New("model: serialize nil model")
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(m.State()); err != nil {
		return nil, fmt.Errorf("encode model state: %w", err)
	}
	sum := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("compress model: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}

	var out bytes.Buffer
	env := envelope{
		Magic:    FormatMagic,
		Version:  FormatVersion,
		Checksum: hex.EncodeToString(sum[:]),
		Payload:  compressed.Bytes(),
	}
	if err := gob.NewEncoder(&out).Encode(env); err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return out.Bytes(), nil
}

// Deserialize 从 Serialize 的输出重建模型。
// 任何损坏、格式不符、版本不兼容都返回 ErrDeserialization（可用 errors.Is 判断），调用方应重新训练。
func Deserialize(data []byte) (*SVD, error) {
	if len(data) == 0 {
		return nil, deserializationError("empty input", nil)
	}

	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, deserializationError("decode envelope", err)
	}
	if env.Magic != FormatMagic {
		return nil, deserializationError(fmt.Sprintf("unknown format %q", env.Magic), nil)
	}
	if env.Version != FormatVersion {
		return nil, deserializationError(fmt.Sprintf("unsupported format version %d (want %d)", env.Version, FormatVersion), nil)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(env.Payload))
	if err != nil {
		return nil, deserializationError("decompress model", err)
	}
	defer func() { _ = gzr.Close() }()

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, deserializationError("read decompressed data", err)
	}

	sum := sha256.Sum256(raw)
	if checksum := hex.EncodeToString(sum[:]); checksum != env.Checksum {
		return nil, deserializationError(fmt.Sprintf("checksum mismatch: expected %s, got %s", env.Checksum, checksum), nil)
	}

	var st SVDState
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&st); err != nil {
		return nil, deserializationError("decode model state", err)
	}
	return FromState(st)
}

func deserializationError(msg string, err error) error {
	return core.WrapDomainError(core.ModuleModel, core.ErrorCodeDeserialization, "model: deserialize: "+msg, err)
}

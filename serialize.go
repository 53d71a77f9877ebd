package blockengine

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/AdguardTeam/blockengine/filterlist"
	"github.com/AdguardTeam/blockengine/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/c2h5oh/datasize"
	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	// ErrUnsupportedVersion is returned by [Engine.Deserialize] when the data
	// was written by an incompatible version of the format.
	ErrUnsupportedVersion errors.Error = "unsupported serialization version"

	// ErrCorrupted is returned by [Engine.Deserialize] when the data is
	// truncated, fails the checksum, or cannot be decoded.
	ErrCorrupted errors.Error = "corrupted serialized engine"
)

// serializationMagic starts every serialized engine.
var serializationMagic = []byte("BENG")

// serializationVersion is the current version of the format.
const serializationVersion byte = 1

// headerLen is the length of the magic, the version, and the checksum.
const headerLen = 4 + 1 + 8

// maxDecodedSize is the limit of the decompressed payload.
const maxDecodedSize = 1 * datasize.GB

// Field numbers of the payload.
const (
	fieldList protowire.Number = 1
	fieldTag  protowire.Number = 2

	fieldListText       protowire.Number = 1
	fieldListRuleTypes  protowire.Number = 2
	fieldListPermission protowire.Number = 3
)

// Serialize returns the state of e as bytes that [Engine.Deserialize] can
// restore.  The compiled patterns are not included.
func (e *Engine) Serialize() (b []byte, err error) {
	st := e.state.Load()

	var payload []byte
	for _, l := range st.lists {
		payload = protowire.AppendTag(payload, fieldList, protowire.BytesType)
		payload = protowire.AppendBytes(payload, appendList(nil, l))
	}

	for _, t := range e.Tags() {
		payload = protowire.AppendTag(payload, fieldTag, protowire.BytesType)
		payload = protowire.AppendString(payload, t)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, enc.Close()) }()

	compressed := enc.EncodeAll(payload, nil)

	b = make([]byte, 0, headerLen+len(compressed))
	b = append(b, serializationMagic...)
	b = append(b, serializationVersion)
	b = binary.BigEndian.AppendUint64(b, xxhash.Sum64(compressed))
	b = append(b, compressed...)

	return b, nil
}

// appendList appends the encoded l to b.
func appendList(b []byte, l filterlist.List) (res []byte) {
	b = protowire.AppendTag(b, fieldListText, protowire.BytesType)
	b = protowire.AppendString(b, l.Text)
	b = protowire.AppendTag(b, fieldListRuleTypes, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(l.Options.RuleTypes))
	b = protowire.AppendTag(b, fieldListPermission, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(l.Options.Permission))

	return b
}

// Deserialize replaces the state of e with the one from b.  On any error the
// current state of e is kept.  The pattern cache is empty afterwards.
func (e *Engine) Deserialize(ctx context.Context, b []byte) (err error) {
	payload, err := openPayload(b)
	if err != nil {
		return err
	}

	set := filterlist.NewFilterSet(e.logger)
	tags, err := decodePayload(payload, set)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupted, err)
	}

	st, err := newEngineState(ctx, set)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupted, err)
	}

	e.state.Store(st)
	e.setTags(tags)
	e.cache.Clear()

	e.logger.DebugContext(
		ctx,
		"engine deserialized",
		"lists", len(st.lists),
		"tags", len(tags),
	)

	return nil
}

// openPayload checks the header of b and returns the decompressed payload.
func openPayload(b []byte) (payload []byte, err error) {
	if len(b) < headerLen || !bytes.Equal(b[:len(serializationMagic)], serializationMagic) {
		return nil, ErrCorrupted
	}

	if v := b[len(serializationMagic)]; v != serializationVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	sum := binary.BigEndian.Uint64(b[len(serializationMagic)+1:])
	compressed := b[headerLen:]
	if xxhash.Sum64(compressed) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupted)
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}
	defer dec.Close()

	payload, err = dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}

	return payload, nil
}

// decodePayload adds the lists from payload to set and returns the tags.
func decodePayload(payload []byte, set *filterlist.FilterSet) (tags []string, err error) {
	for len(payload) > 0 {
		num, typ, n := protowire.ConsumeTag(payload)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}

		payload = payload[n:]

		switch {
		case num == fieldList && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(payload)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}

			err = decodeList(v, set)
			if err != nil {
				return nil, fmt.Errorf("list: %w", err)
			}
		case num == fieldTag && typ == protowire.BytesType:
			var v string
			v, n = protowire.ConsumeString(payload)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}

			tags = append(tags, v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, payload)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
		}

		payload = payload[n:]
	}

	return tags, nil
}

// decodeList decodes a single list from b and adds it to set.
func decodeList(b []byte, set *filterlist.FilterSet) (err error) {
	var text string
	opts := &filterlist.ParseOptions{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}

		b = b[n:]

		var v uint64
		switch {
		case num == fieldListText && typ == protowire.BytesType:
			text, n = protowire.ConsumeString(b)
		case num == fieldListRuleTypes && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			opts.RuleTypes = filterlist.RuleTypes(v)
		case num == fieldListPermission && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			opts.Permission = rules.PermissionMask(v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}

		if n < 0 {
			return protowire.ParseError(n)
		}

		b = b[n:]
	}

	_, err = set.AddList(text, opts)

	return err
}

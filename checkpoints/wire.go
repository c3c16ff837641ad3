package checkpoints

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Binary checkpoint layout, protobuf wire format.
//
// Checkpoint:
//   1: WeightTensor (repeated, bytes)
//   2: TrainingState (bytes)
//   3: OptimizerState (bytes, optional)
//   4: CheckpointMetadata (bytes)
//
// WeightTensor / OptimizerTensor:
//   1: name (string)
//   2: shape (packed varints)
//   3: data (packed fixed64 doubles)
//   4: type / state_type (string)
//
// TrainingState:
//   1: step (varint)
//   2: best_val_loss (fixed64)
//   3: learning_rate (fixed64)
//   4: total_steps (varint)
//
// OptimizerState:
//   1: type (string)
//   2: parameter entry (repeated, bytes: 1=name string, 2=value fixed64)
//   3: state tensor (repeated, bytes)
//
// CheckpointMetadata:
//   1: run_id (string)
//   2: version (string)
//   3: framework (string)
//   4: created_at unix nanos (varint)
//   5: description (string)

func marshalCheckpoint(c *Checkpoint) ([]byte, error) {
	var buf []byte

	for i := range c.Weights {
		sub := marshalWeightTensor(c.Weights[i].Name, c.Weights[i].Shape, c.Weights[i].Data, c.Weights[i].Type)
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, sub)
	}

	state := marshalTrainingState(&c.TrainingState)
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, state)

	if c.OptimizerState != nil {
		opt := marshalOptimizerState(c.OptimizerState)
		buf = protowire.AppendTag(buf, 3, protowire.BytesType)
		buf = protowire.AppendBytes(buf, opt)
	}

	meta := marshalMetadata(&c.Metadata)
	buf = protowire.AppendTag(buf, 4, protowire.BytesType)
	buf = protowire.AppendBytes(buf, meta)

	return buf, nil
}

func unmarshalCheckpoint(data []byte) (*Checkpoint, error) {
	c := &Checkpoint{}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("invalid tag: %v", protowire.ParseError(n))
		}
		data = data[n:]

		if typ != protowire.BytesType {
			return nil, fmt.Errorf("unexpected wire type %d for field %d", typ, num)
		}
		sub, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, fmt.Errorf("invalid bytes for field %d: %v", num, protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case 1:
			name, shape, vals, kind, err := unmarshalWeightTensor(sub)
			if err != nil {
				return nil, fmt.Errorf("invalid weight tensor: %v", err)
			}
			c.Weights = append(c.Weights, WeightTensor{Name: name, Shape: shape, Data: vals, Type: kind})
		case 2:
			state, err := unmarshalTrainingState(sub)
			if err != nil {
				return nil, fmt.Errorf("invalid training state: %v", err)
			}
			c.TrainingState = *state
		case 3:
			opt, err := unmarshalOptimizerState(sub)
			if err != nil {
				return nil, fmt.Errorf("invalid optimizer state: %v", err)
			}
			c.OptimizerState = opt
		case 4:
			meta, err := unmarshalMetadata(sub)
			if err != nil {
				return nil, fmt.Errorf("invalid metadata: %v", err)
			}
			c.Metadata = *meta
		default:
			// Unknown fields are skipped for forward compatibility.
		}
	}

	return c, nil
}

func marshalWeightTensor(name string, shape []int, data []float64, kind string) []byte {
	var buf []byte

	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendString(buf, name)

	var shapeBuf []byte
	for _, dim := range shape {
		shapeBuf = protowire.AppendVarint(shapeBuf, uint64(dim))
	}
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, shapeBuf)

	dataBuf := make([]byte, 0, len(data)*8)
	for _, v := range data {
		dataBuf = protowire.AppendFixed64(dataBuf, math.Float64bits(v))
	}
	buf = protowire.AppendTag(buf, 3, protowire.BytesType)
	buf = protowire.AppendBytes(buf, dataBuf)

	buf = protowire.AppendTag(buf, 4, protowire.BytesType)
	buf = protowire.AppendString(buf, kind)

	return buf
}

func unmarshalWeightTensor(data []byte) (name string, shape []int, vals []float64, kind string, err error) {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", nil, nil, "", protowire.ParseError(n)
		}
		data = data[n:]

		if typ != protowire.BytesType {
			return "", nil, nil, "", fmt.Errorf("unexpected wire type %d for field %d", typ, num)
		}
		sub, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return "", nil, nil, "", protowire.ParseError(n)
		}
		data = data[n:]

		switch num {
		case 1:
			name = string(sub)
		case 2:
			for len(sub) > 0 {
				v, m := protowire.ConsumeVarint(sub)
				if m < 0 {
					return "", nil, nil, "", protowire.ParseError(m)
				}
				shape = append(shape, int(v))
				sub = sub[m:]
			}
		case 3:
			if len(sub)%8 != 0 {
				return "", nil, nil, "", fmt.Errorf("data field length %d is not a multiple of 8", len(sub))
			}
			vals = make([]float64, 0, len(sub)/8)
			for len(sub) > 0 {
				bits, m := protowire.ConsumeFixed64(sub)
				if m < 0 {
					return "", nil, nil, "", protowire.ParseError(m)
				}
				vals = append(vals, math.Float64frombits(bits))
				sub = sub[m:]
			}
		case 4:
			kind = string(sub)
		}
	}
	return name, shape, vals, kind, nil
}

func marshalTrainingState(s *TrainingState) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(s.Step))
	buf = protowire.AppendTag(buf, 2, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, math.Float64bits(s.BestValLoss))
	buf = protowire.AppendTag(buf, 3, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, math.Float64bits(s.LearningRate))
	buf = protowire.AppendTag(buf, 4, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(s.TotalSteps))
	return buf
}

func unmarshalTrainingState(data []byte) (*TrainingState, error) {
	s := &TrainingState{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			s.Step = int(v)
			data = data[m:]
		case num == 2 && typ == protowire.Fixed64Type:
			bits, m := protowire.ConsumeFixed64(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			s.BestValLoss = math.Float64frombits(bits)
			data = data[m:]
		case num == 3 && typ == protowire.Fixed64Type:
			bits, m := protowire.ConsumeFixed64(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			s.LearningRate = math.Float64frombits(bits)
			data = data[m:]
		case num == 4 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			s.TotalSteps = int(v)
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			data = data[m:]
		}
	}
	return s, nil
}

func marshalOptimizerState(o *OptimizerState) []byte {
	var buf []byte

	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendString(buf, o.Type)

	for name, value := range o.Parameters {
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendString(entry, name)
		entry = protowire.AppendTag(entry, 2, protowire.Fixed64Type)
		entry = protowire.AppendFixed64(entry, math.Float64bits(value))

		buf = protowire.AppendTag(buf, 2, protowire.BytesType)
		buf = protowire.AppendBytes(buf, entry)
	}

	for i := range o.StateData {
		sub := marshalWeightTensor(o.StateData[i].Name, o.StateData[i].Shape, o.StateData[i].Data, o.StateData[i].StateType)
		buf = protowire.AppendTag(buf, 3, protowire.BytesType)
		buf = protowire.AppendBytes(buf, sub)
	}

	return buf
}

func unmarshalOptimizerState(data []byte) (*OptimizerState, error) {
	o := &OptimizerState{Parameters: make(map[string]float64)}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		if typ != protowire.BytesType {
			return nil, fmt.Errorf("unexpected wire type %d for field %d", typ, num)
		}
		sub, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		switch num {
		case 1:
			o.Type = string(sub)
		case 2:
			name, value, err := unmarshalParameterEntry(sub)
			if err != nil {
				return nil, err
			}
			o.Parameters[name] = value
		case 3:
			name, shape, vals, kind, err := unmarshalWeightTensor(sub)
			if err != nil {
				return nil, err
			}
			o.StateData = append(o.StateData, OptimizerTensor{Name: name, Shape: shape, Data: vals, StateType: kind})
		}
	}

	return o, nil
}

func unmarshalParameterEntry(data []byte) (string, float64, error) {
	var name string
	var value float64

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", 0, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			sub, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return "", 0, protowire.ParseError(m)
			}
			name = string(sub)
			data = data[m:]
		case num == 2 && typ == protowire.Fixed64Type:
			bits, m := protowire.ConsumeFixed64(data)
			if m < 0 {
				return "", 0, protowire.ParseError(m)
			}
			value = math.Float64frombits(bits)
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return "", 0, protowire.ParseError(m)
			}
			data = data[m:]
		}
	}

	return name, value, nil
}

func marshalMetadata(m *CheckpointMetadata) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendString(buf, m.RunID)
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendString(buf, m.Version)
	buf = protowire.AppendTag(buf, 3, protowire.BytesType)
	buf = protowire.AppendString(buf, m.Framework)
	buf = protowire.AppendTag(buf, 4, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(m.CreatedAt.UnixNano()))
	if m.Description != "" {
		buf = protowire.AppendTag(buf, 5, protowire.BytesType)
		buf = protowire.AppendString(buf, m.Description)
	}
	return buf
}

func unmarshalMetadata(data []byte) (*CheckpointMetadata, error) {
	m := &CheckpointMetadata{}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == 4 && typ == protowire.VarintType:
			v, k := protowire.ConsumeVarint(data)
			if k < 0 {
				return nil, protowire.ParseError(k)
			}
			m.CreatedAt = time.Unix(0, int64(v)).UTC()
			data = data[k:]
		case typ == protowire.BytesType:
			sub, k := protowire.ConsumeBytes(data)
			if k < 0 {
				return nil, protowire.ParseError(k)
			}
			switch num {
			case 1:
				m.RunID = string(sub)
			case 2:
				m.Version = string(sub)
			case 3:
				m.Framework = string(sub)
			case 5:
				m.Description = string(sub)
			}
			data = data[k:]
		default:
			k := protowire.ConsumeFieldValue(num, typ, data)
			if k < 0 {
				return nil, protowire.ParseError(k)
			}
			data = data[k:]
		}
	}

	return m, nil
}

package model

import (
	"encoding/json"
	"fmt"
)

// LayerInfo describes one layer of a model for analysis and reporting.
type LayerInfo struct {
	Name           string         `json:"name"`
	OpType         string         `json:"op_type"`
	Params         int            `json:"params,omitempty"`
	BiasParams     int            `json:"bias_params,omitempty"`
	Prunable       bool           `json:"prunable"`
	FLOPs          int            `json:"flops,omitempty"`
	ExecutionOrder int            `json:"execution_order"`
	Attributes     map[string]any `json:"attributes,omitempty"`
}

// Validate rejects prunable layers that declare no parameters.
func (l LayerInfo) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("layer info needs a name")
	}
	if l.Prunable && l.Params <= 0 {
		return fmt.Errorf("prunable layer %s must have a non-zero param count", l.Name)
	}
	return nil
}

// LinearLayerInfo builds the metadata record for a fully connected layer.
func LinearLayerInfo(name string, inFeatures, outFeatures int, bias bool, executionOrder int) LayerInfo {
	info := LayerInfo{
		Name:           name,
		OpType:         OpLinear,
		Params:         inFeatures * outFeatures,
		Prunable:       true,
		ExecutionOrder: executionOrder,
		Attributes: map[string]any{
			"in_features":  inFeatures,
			"out_features": outFeatures,
		},
	}
	if bias {
		info.BiasParams = outFeatures
	}
	return info
}

// ConvLayerInfo builds the metadata record for a convolutional layer.
func ConvLayerInfo(name string, inChannels, outChannels int, kernel []int, bias bool, executionOrder int) LayerInfo {
	params := inChannels * outChannels
	for _, k := range kernel {
		params *= k
	}
	info := LayerInfo{
		Name:           name,
		OpType:         OpConv,
		Params:         params,
		Prunable:       true,
		ExecutionOrder: executionOrder,
		Attributes: map[string]any{
			"in_channels":  inChannels,
			"out_channels": outChannels,
			"kernel":       kernel,
		},
	}
	if bias {
		info.BiasParams = outChannels
	}
	return info
}

// ExtractLayerInfo builds the ordered metadata records for a network.
func ExtractLayerInfo(n *Network) ([]LayerInfo, error) {
	infos := make([]LayerInfo, 0, len(n.Layers))
	for i, layer := range n.Layers {
		info := LayerInfo{
			Name:           layer.Name,
			OpType:         layer.OpType,
			Prunable:       layer.Prunable(),
			ExecutionOrder: i,
		}
		if layer.Weights != nil {
			info.Params = layer.Weights.Len()
		}
		if layer.Bias != nil {
			info.BiasParams = layer.Bias.Len()
		}
		if err := info.Validate(); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// MarshalLayerInfo serializes layer metadata preserving execution order.
func MarshalLayerInfo(infos []LayerInfo) ([]byte, error) {
	return json.Marshal(infos)
}

// UnmarshalLayerInfo deserializes layer metadata and validates every record.
func UnmarshalLayerInfo(data []byte) ([]LayerInfo, error) {
	var infos []LayerInfo
	if err := json.Unmarshal(data, &infos); err != nil {
		return nil, err
	}
	for _, info := range infos {
		if err := info.Validate(); err != nil {
			return nil, err
		}
	}
	return infos, nil
}

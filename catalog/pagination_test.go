package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func queryParam(name string) ParameterDescriptor {
	return ParameterDescriptor{Name: name, In: LocationQuery}
}

func TestDetectPaginationParam(t *testing.T) {
	tests := []struct {
		name   string
		params []ParameterDescriptor
		want   string
		found  bool
	}{
		{"limit", []ParameterDescriptor{queryParam("limit")}, "limit", true},
		{"offset", []ParameterDescriptor{queryParam("offset")}, "offset", true},
		{"page substring", []ParameterDescriptor{queryParam("pageSize")}, "pageSize", true},
		{"cursor case insensitive", []ParameterDescriptor{queryParam("NextCursor")}, "NextCursor", true},
		{"cursor preferred over limit", []ParameterDescriptor{queryParam("limit"), queryParam("cursor")}, "cursor", true},
		{"offset preferred over page", []ParameterDescriptor{queryParam("pageToken"), queryParam("offset")}, "offset", true},
		{"path param ignored", []ParameterDescriptor{{Name: "limit", In: LocationPath}}, "", false},
		{"header param ignored", []ParameterDescriptor{{Name: "cursor", In: LocationHeader}}, "", false},
		{"unlisted name", []ParameterDescriptor{queryParam("contractId")}, "", false},
		{"no params", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := DetectPaginationParam(&OperationEntry{Parameters: tt.params})
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

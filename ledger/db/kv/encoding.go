package kv

import (
	"reflect"

	"github.com/golang/snappy"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func decode(data []byte, dst interface{}) error {
	data, err := snappy.Decode(nil, data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return err
	}
	return nil
}

func encode(msg interface{}) ([]byte, error) {
	if msg == nil || (reflect.ValueOf(msg).Kind() == reflect.Ptr && reflect.ValueOf(msg).IsNil()) {
		return nil, errors.New("cannot encode nil record")
	}
	enc, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, enc), nil
}

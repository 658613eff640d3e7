package model

import (
	"encoding/json"
)

// Optional 记录 JSON 字段是否出现、是否为 null
// 字段缺失时 UnmarshalJSON 不会被调用，Set 保持 false
type Optional[T any] struct {
	Value T
	Set   bool
	Null  bool
}

// Some 构造一个已设置的值
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// UnmarshalJSON 实现 json.Unmarshaler
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// Present 字段出现且不为 null
func (o Optional[T]) Present() bool {
	return o.Set && !o.Null
}

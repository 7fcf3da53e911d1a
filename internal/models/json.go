package models

import "gorm.io/datatypes"

// MergeJSONMap overlays new keys onto an existing JSON column value without
// dropping keys the caller did not send.
func MergeJSONMap(base datatypes.JSONMap, overlay map[string]interface{}) datatypes.JSONMap {
	merged := datatypes.JSONMap{}
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

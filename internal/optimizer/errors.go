package optimizer

import "errors"

// ErrInvalidConfig 求解参数不合法
var ErrInvalidConfig = errors.New("optimizer: invalid configuration")

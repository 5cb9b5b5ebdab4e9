package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）、模块（Module）和消息（Message）
//   - 同 Module + Code 的错误满足 errors.Is，便于调用方按类别判断
//   - Err 保存底层原因，可通过 errors.Unwrap 取出
//
// 使用场景：
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED
//   - Model 错误：INVALID_CONFIG, EMPTY_TRAINING_SET, DESERIALIZATION
//   - Recommend 错误：INVALID_INPUT, UNAVAILABLE
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "INVALID_CONFIG"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "model"）
	Err     error  // 底层原因（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 返回底层原因。
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is 按 Module + Code 匹配，Message 不参与比较。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Module == t.Module && e.Code == t.Code
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的第一个 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建带底层原因的领域错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	// 通用错误代码
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误

	// 模型错误代码
	ErrorCodeInvalidConfig    = "INVALID_CONFIG"     // 训练配置非法
	ErrorCodeEmptyTrainingSet = "EMPTY_TRAINING_SET" // 训练集为空
	ErrorCodeDeserialization  = "DESERIALIZATION"    // 模型反序列化失败
)

// 模块名称常量
const (
	ModuleStore     = "store"     // 存储模块
	ModuleModel     = "model"     // 模型模块
	ModuleRecommend = "recommend" // 推荐模块
	ModuleDataset   = "dataset"   // 数据加载模块
)

// 模型与推荐错误定义（使用统一的 DomainError，可配合 errors.Is 使用）
var (
	// ErrInvalidConfig 表示训练配置非法（n_factors/epochs 非正、评分区间 min >= max 等）
	ErrInvalidConfig = NewDomainError(ModuleModel, ErrorCodeInvalidConfig, "model: invalid config")

	// ErrEmptyTrainingSet 表示 fit 时没有任何评分
	ErrEmptyTrainingSet = NewDomainError(ModuleModel, ErrorCodeEmptyTrainingSet, "model: empty training set")

	// ErrDeserialization 表示持久化字节损坏或版本不兼容，调用方需要重新训练
	ErrDeserialization = NewDomainError(ModuleModel, ErrorCodeDeserialization, "model: deserialization failed")

	// ErrInvalidInput 表示推荐请求参数非法（如 n < 1）
	ErrInvalidInput = NewDomainError(ModuleRecommend, ErrorCodeInvalidInput, "recommend: invalid input")

	// ErrModelNotReady 表示尚未加载或训练出可用模型
	ErrModelNotReady = NewDomainError(ModuleRecommend, ErrorCodeUnavailable, "recommend: model not ready")
)

// 通用错误检查函数

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrorCodeInvalidInput)
}

// IsInvalidConfig 检查错误是否为训练配置非法
func IsInvalidConfig(err error) bool {
	return hasCode(err, ErrorCodeInvalidConfig)
}

// IsEmptyTrainingSet 检查错误是否为训练集为空
func IsEmptyTrainingSet(err error) bool {
	return hasCode(err, ErrorCodeEmptyTrainingSet)
}

// IsDeserialization 检查错误是否为模型反序列化失败
func IsDeserialization(err error) bool {
	return hasCode(err, ErrorCodeDeserialization)
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

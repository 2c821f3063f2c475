package pipeline

// Response 传输无关的响应：状态码、负载、响应头。
// Body 交给传输层渲染，[]byte 与 string 原样写出，其余按 JSON 编码。
type Response struct {
	Status  int
	Body    any
	Headers map[string]string
}

// NewResponse 创建带状态码的响应。
func NewResponse(status int, body any) *Response {
	return &Response{Status: status, Body: body}
}

// OK 创建 200 响应。
func OK(body any) *Response {
	return NewResponse(200, body)
}

// Created 创建 201 响应。
func Created(body any) *Response {
	return NewResponse(201, body)
}

// NoContent 创建 204 空响应。
func NoContent() *Response {
	return NewResponse(204, nil)
}

// WithHeader 设置响应头并返回自身，便于链式调用。
func (r *Response) WithHeader(key, value string) *Response {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

// 兜底响应。正文只携带类别短语，内部细节不出现在响应里。
func forbiddenResponse() Response {
	return Response{Status: 403, Body: map[string]any{"error": "Forbidden"}}
}

func notFoundResponse() Response {
	return Response{Status: 404, Body: map[string]any{"error": "Not Found"}}
}

func serverErrorResponse() Response {
	return Response{Status: 500, Body: map[string]any{"error": "Internal Server Error"}}
}

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// MaxLineSize is the default bound on a single input line
const MaxLineSize = 16 << 20

// Serve reads newline-delimited requests from r and writes one response
// line per non-blank input line to w. A line longer than the limit is
// discarded and answered with a parse error. Serve returns nil at end of
// input.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	in := bufio.NewReaderSize(r, 64*1024)
	out := bufio.NewWriter(w)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, tooLong, err := readLine(in, s.maxLine)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read request: %w", err)
		}

		var resp *Response
		if tooLong {
			s.logger.Warn("discarded oversized line", zap.Int("limit", s.maxLine))
			resp = parseErrorResponse(fmt.Errorf("line exceeds %d bytes", s.maxLine))
		} else {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			s.logger.Debug("received", zap.ByteString("line", line))
			resp = s.HandleLine(ctx, line)
		}

		data := encodeResponse(resp)
		s.logger.Debug("sending", zap.ByteString("line", data))
		if _, err := out.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
		if err := out.Flush(); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
}

// readLine returns the next line including its terminator. Once a line
// grows past limit its bytes are dropped until the newline and tooLong is
// set. A final line without a newline is returned before io.EOF.
func readLine(r *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(bytes.TrimRight(line, "\r\n"))+len(bytes.TrimRight(chunk, "\r\n")) > limit {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}

		switch {
		case err == nil:
			return line, tooLong, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && (len(line) > 0 || tooLong):
			return line, tooLong, nil
		default:
			return nil, false, err
		}
	}
}

// HandleLine decodes and handles one line. Malformed input yields a parse
// error response with a null id.
func (s *Server) HandleLine(ctx context.Context, line []byte) *Response {
	req, err := DecodeRequest(line)
	if err != nil {
		return parseErrorResponse(err)
	}
	return s.Handle(ctx, req)
}

// encodeResponse marshals resp without HTML escaping. A result that cannot
// be encoded is replaced by an internal error for the same id.
func encodeResponse(resp *Response) []byte {
	data, err := marshal(resp)
	if err != nil {
		data, _ = marshal(&Response{
			JSONRPC: jsonrpcVersion,
			ID:      resp.ID,
			Error:   newRPCError(ErrorCodeInternalError, "failed to encode response: "+err.Error()),
		})
	}
	return data
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

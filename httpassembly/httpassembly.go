package httpassembly

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/reassembly"
)

// MaxExchangeBytes bounds what is buffered for one direction of a single
// request/response exchange before the stream gives up on it.
const MaxExchangeBytes = 32 << 20

// HttpAssembler turns TCP packets into parsed HTTP exchanges. It is not safe
// for concurrent use; feed it from one goroutine.
type HttpAssembler struct {
	pool      *reassembly.StreamPool
	assembler *reassembly.Assembler
}

func NewAssembler(factory HttpStreamFactory) *HttpAssembler {
	p := reassembly.NewStreamPool(&factoryWrapper{wrap: factory})
	a := reassembly.NewAssembler(p)
	return &HttpAssembler{pool: p, assembler: a}
}

type assemblyContext struct {
	CaptureInfo gopacket.CaptureInfo
}

func (c *assemblyContext) GetCaptureInfo() gopacket.CaptureInfo {
	return c.CaptureInfo
}

func (a *HttpAssembler) Assemble(p gopacket.Packet) {
	tcp := p.Layer(layers.LayerTypeTCP)
	if tcp == nil || p.NetworkLayer() == nil {
		return
	}

	c := assemblyContext{CaptureInfo: p.Metadata().CaptureInfo}
	a.assembler.AssembleWithContext(p.NetworkLayer().NetworkFlow(), tcp.(*layers.TCP), &c)
}

// FlushOlderThan closes streams idle since before t and returns how many
// were flushed and closed.
func (a *HttpAssembler) FlushOlderThan(t time.Time) (flushed, closed int) {
	return a.assembler.FlushCloseOlderThan(t)
}

type HttpStreamFactory interface {
	New() HttpStream
}

// HttpStream receives each complete exchange. Bodies are fully buffered and
// may be read after the call returns.
type HttpStream interface {
	ReassembledRequestResponse(req *http.Request, res *http.Response)
}

type factoryWrapper struct {
	wrap HttpStreamFactory
}

func (f *factoryWrapper) New(netFlow, tcpFlow gopacket.Flow, tcp *layers.TCP, ac reassembly.AssemblerContext) reassembly.Stream {
	return &streamWrapper{ex: exchange{wrap: f.wrap.New()}}
}

type streamWrapper struct {
	ex exchange
}

func (s *streamWrapper) Accept(tcp *layers.TCP, ci gopacket.CaptureInfo, dir reassembly.TCPFlowDirection, nextSeq reassembly.Sequence, start *bool, ac reassembly.AssemblerContext) bool {
	return true
}

func (s *streamWrapper) ReassembledSG(sg reassembly.ScatterGather, ac reassembly.AssemblerContext) {
	l, _ := sg.Lengths()
	if l == 0 {
		return
	}
	dir, _, _, skip := sg.Info()
	if skip != 0 {
		// Lost bytes; whatever is buffered can no longer be parsed.
		s.ex.reset()
	}
	s.ex.feed(dir == reassembly.TCPDirClientToServer, sg.Fetch(l))
}

func (s *streamWrapper) ReassemblyComplete(ac reassembly.AssemblerContext) bool {
	s.ex.reset()
	return true
}

// exchange pairs the bytes of one request with the bytes of its response.
// The client side is assumed to speak first; pipelined requests are not
// supported.
type exchange struct {
	wrap HttpStream
	req  []byte
	res  []byte
}

func (e *exchange) reset() {
	e.req = nil
	e.res = nil
}

func (e *exchange) feed(fromClient bool, data []byte) {
	if fromClient {
		if len(e.res) > 0 {
			// a new request started before the last response parsed
			e.reset()
		}
		e.req = append(e.req, data...)
	} else {
		if len(e.req) == 0 {
			return
		}
		e.res = append(e.res, data...)
	}

	if len(e.req) > MaxExchangeBytes || len(e.res) > MaxExchangeBytes {
		slog.Debug("dropping oversized exchange", "req", len(e.req), "res", len(e.res))
		e.reset()
		return
	}
	if len(e.res) > 0 {
		e.tryEmit()
	}
}

func (e *exchange) tryEmit() {
	// A cut inside the header block reads as a malformed header rather than
	// as a short read, so wait for both header blocks to end.
	if !bytes.Contains(e.req, headerEnd) || !bytes.Contains(e.res, headerEnd) {
		return
	}

	req, reqBody, err := readRequest(e.req)
	if err != nil {
		if !incomplete(err) {
			slog.Debug("could not parse request", "err", err)
			e.reset()
		}
		return
	}

	res, err := readResponse(e.res, req)
	if err != nil {
		if !incomplete(err) {
			slog.Debug("could not parse response", "err", err)
			e.reset()
		}
		return
	}

	req.Body = io.NopCloser(bytes.NewReader(reqBody))
	e.wrap.ReassembledRequestResponse(req, res)
	e.reset()
}

var headerEnd = []byte("\r\n\r\n")

func readRequest(b []byte) (*http.Request, []byte, error) {
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(b)))
	if err != nil {
		return nil, nil, err
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, nil, err
	}
	return req, body, nil
}

func readResponse(b []byte, req *http.Request) (*http.Response, error) {
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	res.Body = io.NopCloser(bytes.NewReader(body))
	return res, nil
}

// incomplete reports whether more bytes may still turn err into a success.
func incomplete(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

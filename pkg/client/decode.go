package client

import (
	"encoding/json"
	"io"
	"net/http"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubewire/kubewire/pkg/apierrors"
)

// List is the decoded shape of a list response.
type List[T any] struct {
	metav1.TypeMeta `json:",inline"`
	ListMeta        metav1.ListMeta `json:"metadata,omitempty"`
	Items           []T             `json:"items"`
}

// ResourceOrStatus is the result sum of a delete: either the deleted object
// came back, or the server acknowledged with a Status.
type ResourceOrStatus[T any] struct {
	Resource *T
	Status   *metav1.Status
}

func readBody(resp *http.Response, verb Verb, path string) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierrors.NewTransportError(err).WithRequest(string(verb), path)
	}
	return body, nil
}

// decodeResource decodes a 2xx response into T. An empty body is a protocol
// violation for the verbs that call this.
func decodeResource[T any](resp *http.Response, verb Verb, path string) (*T, error) {
	body, err := readBody(resp, verb, path)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, apierrors.NewMalformedResponse(io.ErrUnexpectedEOF, nil).WithRequest(string(verb), path)
	}
	obj := new(T)
	if err := json.Unmarshal(body, obj); err != nil {
		return nil, apierrors.NewMalformedResponse(err, body).WithRequest(string(verb), path)
	}
	return obj, nil
}

func decodeList[T any](resp *http.Response, verb Verb, path string) (*List[T], error) {
	return decodeResource[List[T]](resp, verb, path)
}

// decodeResourceOrStatus inspects the kind field to pick the branch of the
// delete result sum.
func decodeResourceOrStatus[T any](resp *http.Response, verb Verb, path string) (*ResourceOrStatus[T], error) {
	body, err := readBody(resp, verb, path)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, apierrors.NewMalformedResponse(io.ErrUnexpectedEOF, nil).WithRequest(string(verb), path)
	}

	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, apierrors.NewMalformedResponse(err, body).WithRequest(string(verb), path)
	}

	if probe.Kind == "Status" {
		status := &metav1.Status{}
		if err := json.Unmarshal(body, status); err != nil {
			return nil, apierrors.NewMalformedResponse(err, body).WithRequest(string(verb), path)
		}
		return &ResourceOrStatus[T]{Status: status}, nil
	}

	obj := new(T)
	if err := json.Unmarshal(body, obj); err != nil {
		return nil, apierrors.NewMalformedResponse(err, body).WithRequest(string(verb), path)
	}
	return &ResourceOrStatus[T]{Resource: obj}, nil
}

// drainBody discards a 2xx response body so the connection returns to the
// pool.
func drainBody(resp *http.Response) {
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
}

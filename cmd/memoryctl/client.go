package main

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(apiFlag).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)
}

func doGet(path string, query map[string]string) ([]byte, error) {
	req := newClient().R()
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s: %s", resp.Status(), resp.String())
	}
	return resp.Body(), nil
}

func doPost(path string, body interface{}) ([]byte, error) {
	resp, err := newClient().R().SetBody(body).Post(path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s: %s", resp.Status(), resp.String())
	}
	return resp.Body(), nil
}

func doPut(path string, body interface{}) ([]byte, error) {
	resp, err := newClient().R().SetBody(body).Put(path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s: %s", resp.Status(), resp.String())
	}
	return resp.Body(), nil
}

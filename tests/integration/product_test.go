//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)
	if len(products) != seedCount {
		t.Fatalf("expected %d products, got %d", seedCount, len(products))
	}
}

func TestListProducts_Fields(t *testing.T) {
	jeans := findProduct(t, "LV-501-RAW")

	if jeans.Name != "501 Original Jeans" {
		t.Errorf("name: got %q, want %q", jeans.Name, "501 Original Jeans")
	}
	if jeans.Brand != "Levi's" {
		t.Errorf("brand: got %q, want %q", jeans.Brand, "Levi's")
	}
	if jeans.Price != 79.50 {
		t.Errorf("price: got %v, want 79.50", jeans.Price)
	}
	if jeans.Quantity != 40 {
		t.Errorf("quantity: got %d, want 40", jeans.Quantity)
	}
	if jeans.Category != "jeans" {
		t.Errorf("category: got %q, want %q", jeans.Category, "jeans")
	}
	if jeans.Description == "" {
		t.Error("description is empty")
	}
}

func TestGetProduct(t *testing.T) {
	listed := findProduct(t, "CH-CT-HI")

	resp := doGet(t, "/api/products/"+listed.ID)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	p := decodeJSON[productResponse](t, resp)
	if p.ID != listed.ID {
		t.Errorf("id: got %q, want %q", p.ID, listed.ID)
	}
	if p.Name != "Chuck Taylor All Star High" {
		t.Errorf("name: got %q, want %q", p.Name, "Chuck Taylor All Star High")
	}
	if p.Price != 65.00 {
		t.Errorf("price: got %v, want 65.00", p.Price)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	resp := doGet(t, "/api/products/00000000-0000-0000-0000-000000000000")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.Code != 404 {
		t.Errorf("error code: got %d, want 404", errResp.Code)
	}
}

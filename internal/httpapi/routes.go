package httpapi

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleStatus)
	s.mux.HandleFunc("GET /collections", s.handleListCollections)
	s.mux.HandleFunc("POST /collections", s.handleCreateCollection)
	s.mux.HandleFunc("POST /collection/{uuid}/records", s.handlePushRecords)
	s.mux.HandleFunc("POST /collection/{uuid}/raw_records", s.handlePushRawRecords)
	s.mux.HandleFunc("GET /id/{flags}/{id}", s.handleGetByID)
	s.mux.HandleFunc("GET /url/{flags}/{date}/{url...}", s.handleGetByURL)
	s.mux.HandleFunc("GET /search", s.handleSearch)
	s.mux.HandleFunc("GET /dictionary/{id}", s.handleGetDictionary)
}

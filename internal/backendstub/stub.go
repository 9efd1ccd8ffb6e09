package backendstub

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Krimson/xray-triage/pkg/models"
)

// Маршруты, по которым считаются вызовы
const (
	RoutePredict        = "POST /predict-image"
	RouteDiseaseDetails = "GET /disease-details/{name}"
	RouteSaveResult     = "POST /save-result"
	RouteResults        = "GET /results/{username}"
	RouteLogin          = "POST /login"
)

// Labels - классы ChestX-ray14, которые "распознает" заглушка
var Labels = []string{
	"Atelectasis", "Cardiomegaly", "Effusion", "Infiltration", "Mass", "Nodule", "Pneumonia",
	"Pneumothorax", "Consolidation", "Edema", "Emphysema", "Fibrosis", "Pleural_Thickening", "Hernia",
}

// SigningKey - ключ, которым заглушка подписывает выдаваемые токены
var SigningKey = []byte("backend-stub-secret")

// Stub - заглушка внешнего бэкенда (классификация, справочник, сохранение результатов)
type Stub struct {
	logger *zap.Logger
	router *mux.Router

	mu          sync.Mutex
	calls       map[string]int
	failures    map[string]int
	predictions map[string]*models.PredictionResult
	saved       []models.SaveResultRecord
	diseases    map[string]*models.Disease
	reviews     []models.Review
	subscribers []models.Subscriber
	users       map[string]models.User
}

// New создает заглушку с маршрутами бэкенда
func New(logger *zap.Logger) *Stub {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Stub{
		logger:      logger,
		calls:       make(map[string]int),
		failures:    make(map[string]int),
		predictions: make(map[string]*models.PredictionResult),
		diseases:    make(map[string]*models.Disease),
		users:       make(map[string]models.User),
	}

	r := mux.NewRouter()
	r.Use(s.record)

	r.HandleFunc("/predict-image", s.predict).Methods(http.MethodPost)
	r.HandleFunc("/predict-image/{id}", s.getPrediction).Methods(http.MethodGet)
	r.HandleFunc("/disease-details/{name}", s.diseaseDetails).Methods(http.MethodGet)
	r.HandleFunc("/save-result", s.saveResult).Methods(http.MethodPost)
	r.HandleFunc("/results/{username}", s.results).Methods(http.MethodGet)
	r.HandleFunc("/images/upload", s.upload).Methods(http.MethodPost)

	r.HandleFunc("/register", s.register).Methods(http.MethodPost)
	r.HandleFunc("/login", s.login).Methods(http.MethodPost)
	r.HandleFunc("/users/all", s.listUsers).Methods(http.MethodGet)
	r.HandleFunc("/users/count", s.countUsers).Methods(http.MethodGet)

	r.HandleFunc("/diseases/", s.listDiseases).Methods(http.MethodGet)
	r.HandleFunc("/diseases/", s.createDisease).Methods(http.MethodPost)
	r.HandleFunc("/diseases/{id}/suggested-questions", s.suggestedQuestions).Methods(http.MethodGet)
	r.HandleFunc("/diseases/{id}", s.getDisease).Methods(http.MethodGet)
	r.HandleFunc("/diseases/{id}", s.updateDisease).Methods(http.MethodPut)
	r.HandleFunc("/diseases/{id}", s.deleteDisease).Methods(http.MethodDelete)

	r.HandleFunc("/reviews/", s.listReviews).Methods(http.MethodGet)
	r.HandleFunc("/reviews/", s.createReview).Methods(http.MethodPost)
	r.HandleFunc("/reviews/id/{id}", s.deleteReview).Methods(http.MethodDelete)
	r.HandleFunc("/reviews/{username}", s.reviewsByUser).Methods(http.MethodGet)
	r.HandleFunc("/reviews/{username}", s.deleteReviewsByUser).Methods(http.MethodDelete)

	r.HandleFunc("/subscribe", s.subscribe).Methods(http.MethodPost)
	r.HandleFunc("/subscribers", s.listSubscribers).Methods(http.MethodGet)
	r.HandleFunc("/send-newsletter", s.sendNewsletter).Methods(http.MethodPost)

	r.HandleFunc("/chat", s.chat).Methods(http.MethodPost)
	r.HandleFunc("/g_chat", s.geminiChat).Methods(http.MethodPost)

	s.router = r
	return s
}

// Handler возвращает http.Handler заглушки
func (s *Stub) Handler() http.Handler {
	return s.router
}

// FailRoute заставляет маршрут отвечать статусом status (0 - снять отказ)
func (s *Stub) FailRoute(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, route)
		return
	}
	s.failures[route] = status
}

// SetPrediction фиксирует ответ /predict-image для конкретного снимка
func (s *Stub) SetPrediction(imageURL string, result *models.PredictionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions[imageURL] = result
}

// Calls возвращает число вызовов маршрута
func (s *Stub) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// TotalCalls возвращает общее число вызовов
func (s *Stub) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Saved возвращает копию сохраненных результатов
func (s *Stub) Saved() []models.SaveResultRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SaveResultRecord, len(s.saved))
	copy(out, s.saved)
	return out
}

// GetStats - статистика для /debug/stats
func (s *Stub) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := make(map[string]int, len(s.calls))
	for k, v := range s.calls {
		calls[k] = v
	}
	return map[string]interface{}{
		"calls":       calls,
		"saved":       len(s.saved),
		"diseases":    len(s.diseases),
		"reviews":     len(s.reviews),
		"subscribers": len(s.subscribers),
	}
}

// IssueToken выдает подписанный токен для пользователя (как внешний провайдер)
func IssueToken(username string) (string, error) {
	claims := jwt.MapClaims{
		"sub":                username,
		"preferred_username": username,
		"iat":                time.Now().Unix(),
		"exp":                time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(SigningKey)
}

// ===== middleware =====

func (s *Stub) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = r.Method + " " + tpl
			}
		}

		s.mu.Lock()
		s.calls[route]++
		status := s.failures[route]
		s.mu.Unlock()

		s.logger.Debug("[STUB] request", zap.String("route", route))

		if status != 0 {
			respondJSON(w, status, map[string]string{"detail": fmt.Sprintf("stub failure for %s", route)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ===== предсказания и результаты =====

func (s *Stub) predict(w http.ResponseWriter, r *http.Request) {
	var req models.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ImageURL == "" {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "image_url is required"})
		return
	}

	s.mu.Lock()
	fixed, ok := s.predictions[req.ImageURL]
	s.mu.Unlock()
	if ok {
		respondJSON(w, http.StatusOK, fixed)
		return
	}

	respondJSON(w, http.StatusOK, GeneratePrediction(req.ImageURL))
}

func (s *Stub) getPrediction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	for url, p := range s.predictions {
		if strings.Contains(url, id) {
			respondJSON(w, http.StatusOK, p)
			return
		}
	}
	respondJSON(w, http.StatusNotFound, map[string]string{"detail": "prediction not found"})
}

// GeneratePrediction строит детерминированный топ-5 для снимка
func GeneratePrediction(imageURL string) *models.PredictionResult {
	h := fnv.New64a()
	h.Write([]byte(imageURL))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	scores := make([]models.DiseasePrediction, len(Labels))
	var total float64
	for i, label := range Labels {
		v := rng.Float64()
		scores[i] = models.DiseasePrediction{Disease: label, Probability: v}
		total += v
	}
	for i := range scores {
		scores[i].Probability /= total
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Probability > scores[j].Probability
	})

	return &models.PredictionResult{ImageURL: imageURL, TopDiseases: scores[:5]}
}

func (s *Stub) diseaseDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	lang := r.URL.Query().Get("language")
	if lang == "" {
		lang = "en"
	}
	respondJSON(w, http.StatusOK, models.DiseaseDetail{
		Disease:  name,
		Details:  DetailsMarkdown(name),
		Language: lang,
	})
}

// DetailsMarkdown - текст описания, который отдает заглушка
func DetailsMarkdown(name string) string {
	return fmt.Sprintf("# %s\n\n**Overview.** Reference notes for %s.\n\n"+
		"- Common findings on chest X-ray\n- Recommended follow-up\n", name, name)
}

func (s *Stub) saveResult(w http.ResponseWriter, r *http.Request) {
	if bearer(r) == "" {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
		return
	}

	var rec models.SaveResultRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	s.saved = append(s.saved, rec)
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]string{"message": "Result saved successfully"})
}

func (s *Stub) results(w http.ResponseWriter, r *http.Request) {
	if bearer(r) == "" {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
		return
	}
	username := mux.Vars(r)["username"]

	s.mu.Lock()
	items := make([]models.HistoryItem, 0)
	for _, rec := range s.saved {
		if rec.Username != username {
			continue
		}
		items = append(items, models.HistoryItem{
			Username:       rec.Username,
			DiseaseDetails: rec.DiseaseDetails,
			PredictionData: rec.PredictionData,
			ImageURL:       rec.ImageURL,
			Details:        rec.Details,
			Disease:        rec.Disease,
			Timestamp:      rec.Timestamp,
		})
	}
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, items)
}

func (s *Stub) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "file is required"})
		return
	}
	defer file.Close()

	publicID := uuid.New().String()
	format := "png"
	if i := strings.LastIndex(header.Filename, "."); i >= 0 {
		format = strings.ToLower(header.Filename[i+1:])
	}
	url := "https://cdn.example.com/xray/" + publicID + "." + format
	respondJSON(w, http.StatusOK, models.ImageUpload{
		PublicID:  publicID,
		URL:       url,
		SecureURL: url,
		Format:    format,
		Width:     1024,
		Height:    1024,
	})
}

// ===== учетные записи =====

func (s *Stub) register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "username is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Username]; exists {
		respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "Username already registered"})
		return
	}
	s.users[req.Username] = models.User{Username: req.Username, Email: req.Email, FullName: req.FullName, Role: "user"}
	respondJSON(w, http.StatusOK, map[string]string{"message": "User registered successfully"})
}

func (s *Stub) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	username := r.FormValue("username")
	if username == "" || r.FormValue("password") == "" {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect username or password"})
		return
	}

	token, err := IssueToken(username)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, models.TokenResponse{AccessToken: token, TokenType: "bearer", Username: username})
}

func (s *Stub) listUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	s.mu.Unlock()
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	respondJSON(w, http.StatusOK, users)
}

func (s *Stub) countUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := len(s.users)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]int{"count": n})
}

// ===== справочник =====

func (s *Stub) listDiseases(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]models.Disease, 0, len(s.diseases))
	for _, d := range s.diseases {
		out = append(out, *d)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	respondJSON(w, http.StatusOK, out)
}

func (s *Stub) createDisease(w http.ResponseWriter, r *http.Request) {
	var d models.Disease
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil || d.Name == "" {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "name is required"})
		return
	}
	d.ID = uuid.New().String()

	s.mu.Lock()
	s.diseases[d.ID] = &d
	s.mu.Unlock()
	respondJSON(w, http.StatusCreated, d)
}

func (s *Stub) getDisease(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	d, ok := s.diseases[id]
	s.mu.Unlock()
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]string{"detail": "Disease not found"})
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (s *Stub) updateDisease(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var d models.Disease
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.diseases[id]; !ok {
		respondJSON(w, http.StatusNotFound, map[string]string{"detail": "Disease not found"})
		return
	}
	d.ID = id
	s.diseases[id] = &d
	respondJSON(w, http.StatusOK, d)
}

func (s *Stub) deleteDisease(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.diseases[id]; !ok {
		respondJSON(w, http.StatusNotFound, map[string]string{"detail": "Disease not found"})
		return
	}
	delete(s.diseases, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Stub) suggestedQuestions(w http.ResponseWriter, r *http.Request) {
	disease := mux.Vars(r)["id"]
	respondJSON(w, http.StatusOK, models.SuggestedQuestions{
		Disease: disease,
		Questions: []string{
			fmt.Sprintf("What are the symptoms of %s?", disease),
			fmt.Sprintf("How is %s treated?", disease),
		},
	})
}

// ===== отзывы и рассылка =====

func (s *Stub) listReviews(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]models.Review, len(s.reviews))
	copy(out, s.reviews)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, out)
}

func (s *Stub) createReview(w http.ResponseWriter, r *http.Request) {
	var rv models.Review
	if err := json.NewDecoder(r.Body).Decode(&rv); err != nil || rv.Username == "" {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "username is required"})
		return
	}
	rv.ID = uuid.New().String()
	rv.CreatedAt = time.Now().UTC().Format(time.RFC3339)

	s.mu.Lock()
	s.reviews = append(s.reviews, rv)
	s.mu.Unlock()
	respondJSON(w, http.StatusCreated, rv)
}

func (s *Stub) reviewsByUser(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	s.mu.Lock()
	out := make([]models.Review, 0)
	for _, rv := range s.reviews {
		if rv.Username == username {
			out = append(out, rv)
		}
	}
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, out)
}

func (s *Stub) deleteReviewsByUser(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	s.mu.Lock()
	kept := s.reviews[:0]
	for _, rv := range s.reviews {
		if rv.Username != username {
			kept = append(kept, rv)
		}
	}
	s.reviews = kept
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]string{"message": "Reviews deleted"})
}

func (s *Stub) deleteReview(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rv := range s.reviews {
		if rv.ID == id {
			s.reviews = append(s.reviews[:i], s.reviews[i+1:]...)
			respondJSON(w, http.StatusOK, map[string]string{"message": "Review deleted"})
			return
		}
	}
	respondJSON(w, http.StatusNotFound, map[string]string{"detail": "Review not found"})
}

func (s *Stub) subscribe(w http.ResponseWriter, r *http.Request) {
	var sub models.Subscriber
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil || sub.Email == "" {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "email is required"})
		return
	}
	s.mu.Lock()
	s.subscribers = append(s.subscribers, sub)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]string{"message": "Subscribed"})
}

func (s *Stub) listSubscribers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]models.Subscriber, len(s.subscribers))
	copy(out, s.subscribers)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]interface{}{"subscribers": out})
}

func (s *Stub) sendNewsletter(w http.ResponseWriter, r *http.Request) {
	var letter models.Newsletter
	if err := json.NewDecoder(r.Body).Decode(&letter); err != nil || letter.Subject == "" {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "subject is required"})
		return
	}
	s.mu.Lock()
	n := len(s.subscribers)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]interface{}{"message": "Newsletter sent", "recipients": n})
}

// ===== чат =====

func (s *Stub) chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Disease string `json:"disease"`
		Query   string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Disease == "" {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "disease is required"})
		return
	}
	respondJSON(w, http.StatusOK, models.ChatResponse{
		Answer:            fmt.Sprintf("About %s: %s", req.Disease, req.Query),
		Confidence:        0.7,
		FollowupQuestions: []string{fmt.Sprintf("Is %s contagious?", req.Disease)},
	})
}

func (s *Stub) geminiChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, models.ChatResponse{
		Answer:     "General guidance: " + req.Question,
		Disclaimer: "This is not medical advice.",
	})
}

// ===== утилиты =====

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

package mockbackend

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schoolhub/schoolctl/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var errDuplicateUsername = fmt.Errorf("a user with that username already exists")
var errAuthenticationFailed = fmt.Errorf("no active account found with the given credentials")

type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	FirstName    string
	LastName     string
	Role         string
	SchoolCode   string
	PasswordHash []byte
	DateJoined   time.Time
}

// Profile is the representation of the user returned to clients
func (u User) Profile() models.UserProfile {
	return models.UserProfile{
		ID:         models.StringID(u.ID.String()),
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Role:       u.Role,
		SchoolCode: u.SchoolCode,
		Extra:      map[string]any{"date_joined": u.DateJoined.Format(time.RFC3339)},
	}
}

func (u User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password))
}

// NewUser describes a user to create, the password is hashed on creation
type NewUser struct {
	Username   string
	Email      string
	Password   string
	FirstName  string
	LastName   string
	Role       string
	SchoolCode string
}

type userRepository struct {
	lock  sync.RWMutex
	users map[string]User
}

func userKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (r *userRepository) add(newUser NewUser) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(newUser.Password), bcrypt.MinCost)
	if err != nil {
		return User{}, err
	}
	role := newUser.Role
	if role == "" {
		role = "student"
	}
	user := User{
		ID:           uuid.New(),
		Username:     strings.TrimSpace(newUser.Username),
		Email:        newUser.Email,
		FirstName:    newUser.FirstName,
		LastName:     newUser.LastName,
		Role:         role,
		SchoolCode:   strings.ToUpper(newUser.SchoolCode),
		PasswordHash: hash,
		DateJoined:   time.Now().UTC(),
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, found := r.users[userKey(user.Username)]; found {
		return User{}, errDuplicateUsername
	}
	r.users[userKey(user.Username)] = user
	return user, nil
}

func (r *userRepository) get(username string) (User, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	user, found := r.users[userKey(username)]
	return user, found
}

// authenticate checks the password and that the user belongs to the school
func (r *userRepository) authenticate(username, password, schoolCode string) (User, error) {
	user, found := r.get(username)
	if !found {
		return User{}, errAuthenticationFailed
	}
	if user.CheckPassword(password) != nil {
		return User{}, errAuthenticationFailed
	}
	if !strings.EqualFold(user.SchoolCode, schoolCode) {
		return User{}, errAuthenticationFailed
	}
	return user, nil
}

func (r *userRepository) list() []User {
	r.lock.RLock()
	defer r.lock.RUnlock()
	users := make([]User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

func newUserRepository() *userRepository {
	return &userRepository{users: map[string]User{}}
}
